package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	errx "github.com/smart-order-intake/server/internal/core/error"
	"github.com/smart-order-intake/server/internal/intake/model"
	logx "github.com/smart-order-intake/server/pkg/logger"
)

// basic safety limits to avoid pathological model output
const (
	maxContentLen = 128 * 1024 // 128KB
	maxItems      = 200
	maxErrSnippet = 200
)

// ErrNoJSON is returned when the model output holds no JSON object at all.
var ErrNoJSON = errors.New("no valid JSON found in model response")

var leadingNumber = regexp.MustCompile(`^\s*[-+]?\d+(?:[.,]\d+)?`)

type rawExtraction struct {
	CustomerInfo rawCustomer `json:"customerInfo"`
	Items        []rawItem   `json:"items"`
}

type rawCustomer struct {
	Name            any `json:"name"`
	Email           any `json:"email"`
	DeliveryAddress any `json:"deliveryAddress"`
	DeliveryDate    any `json:"deliveryDate"`
	Notes           any `json:"notes"`
}

type rawItem struct {
	SKU               any `json:"sku"`
	ProductName       any `json:"productName"`
	RequestedQuantity any `json:"requestedQuantity"`
	Confidence        any `json:"confidence"`
}

// ParseExtraction turns model text into an ExtractedOrder. The JSON object may
// be wrapped in prose or code fences. Malformed fields are coerced and noted
// under ParsingMetadata["parsing_errors"]; only a missing or unreadable JSON
// object is an error.
func ParseExtraction(content string) (out *model.ExtractedOrder, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "extraction_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("extraction parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			out = nil
		}
	}()

	meta := map[string]any{}
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "extraction_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = cutAtRune(content, maxContentLen)
		meta["truncated"] = true
	}

	obj, ok := extractJSONObject(content)
	if !ok {
		return nil, ErrNoJSON
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("decode model json: %w", err)
	}

	addErr := func(msg string) {
		v, _ := meta["parsing_errors"].([]string)
		meta["parsing_errors"] = append(v, msg)
	}

	out = &model.ExtractedOrder{
		CustomerInfo: model.CustomerInfo{
			Name:            stringOf(raw.CustomerInfo.Name),
			Email:           stringOf(raw.CustomerInfo.Email),
			DeliveryAddress: stringOf(raw.CustomerInfo.DeliveryAddress),
			DeliveryDate:    stringOf(raw.CustomerInfo.DeliveryDate),
			Notes:           stringOf(raw.CustomerInfo.Notes),
		},
		Items:           []model.RequestedItem{},
		ParsingMetadata: meta,
	}
	if out.CustomerInfo.Name == "" {
		out.CustomerInfo.Name = model.UnknownCustomerName
	}
	if out.CustomerInfo.DeliveryAddress == "" {
		out.CustomerInfo.DeliveryAddress = model.UnknownDeliveryAddress
	}

	for i, it := range raw.Items {
		if i >= maxItems {
			meta["items_capped"] = true
			break
		}
		sku := stringOf(it.SKU)
		name := stringOf(it.ProductName)
		if sku == "" && name == "" {
			addErr(fmt.Sprintf("item %d: no sku or product name", i))
			continue
		}
		qty, qerr := coerceQuantity(it.RequestedQuantity)
		if qerr != nil {
			addErr(fmt.Sprintf("item %d: quantity %s", i, qerr))
		}
		conf, cerr := coerceConfidence(it.Confidence)
		if cerr != nil {
			addErr(fmt.Sprintf("item %d: confidence %s", i, cerr))
		}
		out.Items = append(out.Items, model.RequestedItem{
			SKU:               sku,
			ProductName:       name,
			RequestedQuantity: qty,
			Confidence:        conf,
		})
	}

	out.Confidence = meanConfidence(out.Items)
	return out, nil
}

// extractJSONObject returns the span from the first '{' to the last '}'.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func stringOf(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(vv)
		if strings.EqualFold(s, "null") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(vv))
	}
}

// coerceQuantity accepts JSON numbers, numeric strings and strings with a
// leading number ("10 units"). Fractions are truncated; anything unusable or
// negative becomes 0.
func coerceQuantity(v any) (int, error) {
	var f float64
	switch vv := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing")
	case float64:
		f = vv
	case string:
		m := leadingNumber.FindString(vv)
		if m == "" {
			return 0, fmt.Errorf("not a number: %s", safeSnippet(vv))
		}
		n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(m), ",", "."), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %s", safeSnippet(vv))
		}
		f = n
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid number")
	}
	if f < 0 {
		return 0, fmt.Errorf("negative")
	}
	if f > math.MaxInt32 {
		return 0, fmt.Errorf("out of range")
	}
	return int(f), nil
}

// coerceConfidence clamps into [0,1]; missing or unreadable values become 0.
func coerceConfidence(v any) (float64, error) {
	switch vv := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing")
	case float64:
		return model.ClampUnit(vv), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(vv), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %s", safeSnippet(vv))
		}
		return model.ClampUnit(n), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func meanConfidence(items []model.RequestedItem) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, it := range items {
		sum += it.Confidence
	}
	return sum / float64(len(items))
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	return cutAtRune(s, maxErrSnippet)
}

// cutAtRune returns the longest prefix of s no longer than n bytes that ends
// on a rune boundary.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
