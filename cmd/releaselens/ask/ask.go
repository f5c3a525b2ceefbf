// Package askcmder asks a running ReleaseLens server a question.
package askcmder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/releaselens/releaselens/api"
	"github.com/releaselens/releaselens/pkg/cliui"
)

const askLongDesc string = `Ask a running ReleaseLens server a question.

Sends the question to POST /query on the target server and renders the
grounded answer, followed by the sources it was built from.

Examples:
  releaselens ask "how many critical defects were open in R24.2"
  releaselens ask "compare pass rates across releases" --doc-type comparison`

const askShortDesc string = "Ask a running ReleaseLens server a question"

// DefaultServer is the API target when --server is not given.
const DefaultServer = "http://localhost:8081"

func NewAskCmd() *cobra.Command {
	var (
		server  string
		release string
		docType string
		topK    int
		sources bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runAsk(server, args[0], release, docType, topK, sources)
		},
	}

	cmd.Flags().StringVar(&server, "server", DefaultServer, "Base URL of the running API server")
	cmd.Flags().StringVar(&release, "release", "", "Restrict retrieval to one release label")
	cmd.Flags().StringVar(&docType, "doc-type", "", "Restrict retrieval to one document type")
	cmd.Flags().IntVarP(&topK, "k", "k", 0, "Number of chunks to retrieve (default 8)")
	cmd.Flags().BoolVar(&sources, "sources", false, "Print the retrieved source chunks")

	return cmd
}

func runAsk(server, question, release, docType string, topK int, showSources bool) error {
	reqBody := api.QueryRequest{
		Question: question,
		Release:  release,
		DocType:  docType,
		K:        topK,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Post(server+"/query", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("contacting server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp api.ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("server error (status %d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("server error (status %d): %s", resp.StatusCode, string(body))
	}

	var queryResp api.QueryResponse
	if err := json.Unmarshal(body, &queryResp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	rendered, err := cliui.RenderMarkdown(queryResp.Answer)
	if err != nil {
		// Fall back to the raw answer when the terminal renderer fails.
		rendered = queryResp.Answer + "\n"
	}
	fmt.Print(rendered)

	if showSources {
		fmt.Printf("  %s\n", cliui.KeyStyle.Render("Sources:"))
		for i, src := range queryResp.Sources {
			fmt.Printf("  %s %s\n",
				cliui.DimStyle.Render(fmt.Sprintf("[%d]", i+1)),
				cliui.DimStyle.Render(fmt.Sprintf("%s (%s, %s)",
					src.Metadata["source"], src.Metadata["release"], src.Metadata["doc_type"])),
			)
		}
		fmt.Println()
	}

	return nil
}
