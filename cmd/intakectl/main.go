// Command intakectl submits an order email to a running intake server and
// prints the review table.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/smart-order-intake/server/internal/api"
	"github.com/smart-order-intake/server/internal/intake/export"
)

func main() {
	server := flag.String("server", envOr("INTAKE_SERVER_URL", "http://localhost:3001"), "intake server base URL")
	timeout := flag.Duration("timeout", 90*time.Second, "request timeout")
	raw := flag.Bool("json", false, "print the raw JSON response")
	form := flag.Bool("form", false, "also generate the sales order form data")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: intakectl [flags] [email-file]\n\nReads the email from stdin when no file is given.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	email, err := readEmail(flag.Arg(0))
	if err != nil {
		fail(err)
	}

	c := newClient(*server, *timeout)
	data, err := c.processEmail(email)
	if err != nil {
		fail(err)
	}

	var view api.OrderView
	if err := json.Unmarshal(data, &view); err != nil {
		fail(fmt.Errorf("decode order: %w", err))
	}

	if *raw {
		os.Stdout.Write(data)
		fmt.Println()
	} else {
		printReview(os.Stdout, view)
	}

	if *form && view.Order != nil {
		formData, err := c.generateForm(view.Order.ID)
		if err != nil {
			fail(err)
		}
		os.Stdout.Write(formData)
		fmt.Println()
	}
}

func readEmail(path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "" || path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read email: %w", err)
	}
	return string(b), nil
}

func printReview(w io.Writer, view api.OrderView) {
	if o := view.Order; o != nil {
		fmt.Fprintf(w, "Order %s  status=%s  confidence=%.0f%%\n", o.ID, o.Status, o.Confidence*100)
		fmt.Fprintf(w, "Customer: %s  Delivery: %s\n\n", o.CustomerInfo.Name, o.CustomerInfo.DeliveryAddress)
	}
	printTable(w, view.Review)
}

func printTable(w io.Writer, r export.Review) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tNAME\tQTY\tPRICE\tSUBTOTAL\tSTOCK\tMOQ\tCONF")
	for _, it := range r.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%d\t%d\t%.0f%%\n",
			it.SKU, it.Name, it.Quantity, it.Price, it.Subtotal, it.Stock, it.MOQ, it.Confidence*100)
	}
	fmt.Fprintf(tw, "\t\t\t\t%.2f\t\t\t\n", r.TotalPrice)
	tw.Flush()

	if len(r.Issues) == 0 {
		return
	}
	fmt.Fprintln(w, "\nIssues:")
	for _, is := range r.Issues {
		fmt.Fprintf(w, "  [%s] %s", is.Type, is.Message)
		if is.SuggestedSolution != "" {
			fmt.Fprintf(w, " (%s)", is.SuggestedSolution)
		}
		fmt.Fprintln(w)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "intakectl:", err)
	os.Exit(1)
}
