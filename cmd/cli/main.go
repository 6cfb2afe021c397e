package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hamed0406/uptimeworker/internal/httpapi"
)

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(strings.TrimRight(api, "/") + "/api/checks")
	if err != nil {
		fmt.Println("Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Println("API returned status:", resp.Status)
		os.Exit(1)
	}

	var list httpapi.ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		fmt.Println("Unexpected response:", err)
		os.Exit(1)
	}
	printChecks(os.Stdout, list)
}

func printChecks(w io.Writer, list httpapi.ListResponse) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tMETHOD\tTARGET\tLAST CHECKED")
	for _, c := range list.Checks {
		last := "never"
		if c.LastChecked != nil {
			last = c.LastChecked.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s://%s\t%s\n",
			c.ID, c.State, strings.ToUpper(c.Method), c.Protocol, c.URL, last)
	}
	tw.Flush()
	if len(list.Invalid) > 0 {
		fmt.Fprintf(w, "\n%d invalid check(s) skipped by the worker: %s\n",
			len(list.Invalid), strings.Join(list.Invalid, ", "))
	}
}
