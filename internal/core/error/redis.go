package errx

import (
	"context"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis classifies an order store error. Expired or missing keys are 404,
// deadlines are 504, everything else is a 502 from the backing store.
func WrapRedis(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	case errors.Is(err, context.DeadlineExceeded):
		return New(err, http.StatusGatewayTimeout, RedisTimeoutMessage)
	default:
		return New(err, http.StatusBadGateway, RedisErrorMessage)
	}
}
