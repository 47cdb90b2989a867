package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL string
	verbose   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "monographctl",
	Short:   "Query and manage the monograph knowledge base",
	Version: version,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Long: `Ask a single question against the monograph knowledge base.

Examples:
  # One-shot question
  monographctl ask "What is the typical aspirin dose?"

  # Show per-stage timing and the full ranking
  monographctl ask -v "What interacts with warfarin?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive question session",
	Long: `Start an interactive session. Type a question and press enter.

Session commands:
  verbose on   show timing and sources for every answer
  verbose off  hide them again
  exit, quit   leave the session`,
	RunE: runChat,
}

var loadCmd = &cobra.Command{
	Use:   "load [files...]",
	Short: "Load monograph JSON files into the knowledge base",
	Long: `Load one or more monograph JSON files. Each file holds one monograph:

  {
    "name": "Aspirin",
    "sections": [
      {"name": "Dosage", "text": "...", "terms": ["analgesic"]}
    ]
  }

Ingestion is asynchronous; the command prints the job id per file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9020", "server base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show timing and source details")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(loadCmd)
}

type querySource struct {
	GroupName       string   `json:"group_name"`
	SectionName     string   `json:"section_name"`
	SimilarityScore float32  `json:"similarity_score"`
	RelevanceScore  *float32 `json:"relevance_score"`
}

type queryTiming struct {
	VectorSearchMs int64 `json:"vector_search_ms"`
	RerankMs       int64 `json:"rerank_ms"`
	GenerationMs   int64 `json:"generation_ms"`
	TotalMs        int64 `json:"total_ms"`
}

type queryResult struct {
	Answer  string        `json:"answer"`
	Sources []querySource `json:"sources"`
	Timing  queryTiming   `json:"timing"`
	Error   string        `json:"error"`
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 3 * time.Minute}
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	result, err := sendQuery(newHTTPClient(), question, verbose)
	if err != nil {
		return err
	}
	printResult(result, verbose)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	client := newHTTPClient()
	sessionVerbose := verbose

	fmt.Println("Connected to", serverURL)
	fmt.Println("Type a question, or 'exit' to leave.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "verbose on":
			sessionVerbose = true
			fmt.Println("verbose output enabled")
			continue
		case "verbose off":
			sessionVerbose = false
			fmt.Println("verbose output disabled")
			continue
		}

		result, err := sendQuery(client, line, sessionVerbose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
			continue
		}
		printResult(result, sessionVerbose)
	}
	return scanner.Err()
}

func runLoad(cmd *cobra.Command, args []string) error {
	client := newHTTPClient()

	var failed int
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}

		// Validate before shipping so a bad file fails locally.
		var doc struct {
			Name     string            `json:"name"`
			Sections []json.RawMessage `json:"sections"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			fmt.Fprintf(os.Stderr, "%s: invalid JSON: %v\n", path, err)
			failed++
			continue
		}
		if doc.Name == "" || len(doc.Sections) == 0 {
			fmt.Fprintf(os.Stderr, "%s: name and sections are required\n", path)
			failed++
			continue
		}

		jobID, err := sendIngest(client, data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("%s: queued %s (job %s)\n", path, doc.Name, jobID)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func sendQuery(client *http.Client, question string, verbose bool) (*queryResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query":   question,
		"verbose": verbose,
	})
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(serverURL+"/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var result queryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func sendIngest(client *http.Client, payload []byte) (string, error) {
	resp, err := client.Post(serverURL+"/internal/monographs/ingest", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var accepted struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return accepted.JobID, nil
}

func printResult(result *queryResult, verbose bool) {
	fmt.Println(result.Answer)

	if result.Error != "" {
		fmt.Fprintf(os.Stderr, "(pipeline error: %s)\n", result.Error)
	}

	if !verbose {
		return
	}

	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, s := range result.Sources {
			line := fmt.Sprintf("  %d. %s / %s (similarity %.3f", i+1, s.GroupName, s.SectionName, s.SimilarityScore)
			if s.RelevanceScore != nil {
				line += fmt.Sprintf(", relevance %.3f", *s.RelevanceScore)
			}
			fmt.Println(line + ")")
		}
	}

	fmt.Printf("\nTiming: search %dms, rerank %dms, generation %dms, total %dms\n",
		result.Timing.VectorSearchMs, result.Timing.RerankMs,
		result.Timing.GenerationMs, result.Timing.TotalMs)
}
