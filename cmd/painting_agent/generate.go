package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/painting-generator/internal/server"
)

var (
	generateFlags    clientFlags
	generateTitle    string
	generateQuantity int
	generateTimeout  time.Duration
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Request new paintings for a title",
	Long: `Ask a running server to generate paintings for a title. The command returns
once the ideas exist; use "watch" to follow the image stage.`,
	RunE: runGenerate,
}

func init() {
	generateFlags.register(generateCmd.Flags())
	generateCmd.Flags().StringVar(&generateTitle, "title", "", "Title ID (required)")
	generateCmd.Flags().IntVarP(&generateQuantity, "quantity", "n", 0, "Number of paintings (0 uses the server default)")
	generateCmd.Flags().DurationVar(&generateTimeout, "timeout", 5*time.Minute, "How long to wait for the idea stage")
	_ = generateCmd.MarkFlagRequired("title")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	serverURL, token, err := generateFlags.resolve()
	if err != nil {
		return err
	}
	titleID, err := uuid.Parse(generateTitle)
	if err != nil {
		return fmt.Errorf("invalid --title: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), generateTimeout)
	defer cancel()

	resp, err := requestGeneration(ctx, http.DefaultClient, serverURL, token, titleID, generateQuantity)
	if err != nil {
		return err
	}
	printGenerateResponse(cmd.OutOrStdout(), resp)
	return nil
}

// requestGeneration calls POST /api/paintings/generate.
func requestGeneration(ctx context.Context, client *http.Client, serverURL, token string, titleID uuid.UUID, quantity int) (*server.GenerateResponse, error) {
	body, err := json.Marshal(server.GenerateRequest{TitleID: titleID.String(), Quantity: quantity})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/paintings/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var out server.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

//nolint:errcheck // terminal output
func printGenerateResponse(w io.Writer, resp *server.GenerateResponse) {
	fmt.Fprintln(w, resp.Message)
	for i, idea := range resp.Ideas {
		fmt.Fprintf(w, "%2d. %s\n", i+1, idea.Summary)
	}
	fmt.Fprintf(w, "\nFollow progress with: painting_agent watch --user <your user id>\n")
}
