package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// AddConnectionFlags adds --api-key and --api-url to a command tree.
func AddConnectionFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("api-key", "", "API key (overrides KNOWPOOL_API_KEY)")
	cmd.PersistentFlags().String("api-url", "", "API URL (overrides KNOWPOOL_API_URL)")
}

func ContextCmd() *cobra.Command {
	var (
		segment      string
		maxChars     int
		tags         []string
		problemAreas []string
	)

	cmd := &cobra.Command{
		Use:   "context [industry]",
		Short: "Print the knowledge digest for an industry",
		Long:  "Print the knowledge digest for an industry. The industry, --segment and --max-chars default to the values stored with knowpool config.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := LoadProfile()
			if err != nil {
				return err
			}
			industry, err := profile.industry(args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("segment") {
				segment = profile.Segment
			}
			if !cmd.Flags().Changed("max-chars") {
				maxChars = profile.MaxChars
			}

			c, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{}
			if segment != "" {
				q.Set("segment", segment)
			}
			if maxChars > 0 {
				q.Set("max_chars", strconv.Itoa(maxChars))
			}
			if len(tags) > 0 {
				q.Set("tags", strings.Join(tags, ","))
			}
			if len(problemAreas) > 0 {
				q.Set("problem_areas", strings.Join(problemAreas, ","))
			}

			out, err := c.GetText(industryPath("/context/", industry, q))
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "no knowledge available")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&segment, "segment", "s", "", "Segment to focus on")
	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "Character budget (default from profile, else server default)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags for the cross-venture pattern section")
	cmd.Flags().StringSliceVar(&problemAreas, "problem-areas", nil, "Problem areas for the cross-venture pattern section")

	return cmd
}

type rankedEntry struct {
	ID                  string  `json:"id"`
	KnowledgeType       string  `json:"knowledgeType"`
	Title               string  `json:"title"`
	Confidence          float64 `json:"confidence"`
	EffectiveConfidence float64 `json:"effectiveConfidence"`
}

func RankCmd() *cobra.Command {
	var (
		segment string
		kind    string
		limit   int
		output  string
	)

	cmd := &cobra.Command{
		Use:   "rank [industry]",
		Short: "List ranked knowledge for an industry",
		Long:  "List ranked knowledge for an industry. The industry and --segment default to the values stored with knowpool config.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := LoadProfile()
			if err != nil {
				return err
			}
			industry, err := profile.industry(args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("segment") {
				segment = profile.Segment
			}

			c, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{}
			if segment != "" {
				q.Set("segment", segment)
			}
			if kind != "" {
				q.Set("type", kind)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}

			resp, err := c.Get(industryPath("/knowledge/", industry, q))
			if err != nil {
				return err
			}
			if output == "json" {
				return printRaw(cmd.OutOrStdout(), resp.Data)
			}

			var body struct {
				Entries []rankedEntry `json:"entries"`
			}
			if err := resp.Decode(&body); err != nil {
				return err
			}
			if len(body.Entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No entries found.")
				return nil
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-12s %-5s %-5s %s\n", "TYPE", "EFF", "CONF", "TITLE")
			for _, e := range body.Entries {
				fmt.Fprintf(w, "%-12s %.2f  %.2f  %s\n", e.KnowledgeType, e.EffectiveConfidence, e.Confidence, e.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&segment, "segment", "s", "", "Filter by segment")
	cmd.Flags().StringVarP(&kind, "type", "t", "", "Filter by knowledge type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text or json)")

	return cmd
}

type jobStatus struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	EntriesSaved int    `json:"entriesSaved"`
	Error        string `json:"error"`
}

func SubmitCmd() *cobra.Command {
	var (
		file string
		sync bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a finished session",
		Long:  "Send a {\"session\": ..., \"subject\": ...} document from a file or stdin to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			c, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if sync {
				resp, err := c.Post("/accumulate", doc)
				if err != nil {
					return err
				}
				var out struct {
					Written int `json:"written"`
				}
				if err := resp.Decode(&out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Accumulated %d entries\n", out.Written)
				return nil
			}

			resp, err := c.Post("/sessions", doc)
			if err != nil {
				return err
			}
			var job jobStatus
			if err := resp.Decode(&job); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session queued as job %s\n", job.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Session document path, - for stdin")
	cmd.Flags().BoolVar(&sync, "sync", false, "Accumulate immediately instead of queueing")

	return cmd
}

func JobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show the status of a queued session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Get("/sessions/" + url.PathEscape(args[0]))
			if err != nil {
				return err
			}
			var job jobStatus
			if err := resp.Decode(&job); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s", job.ID, job.Status)
			if job.Status == "completed" {
				fmt.Fprintf(cmd.OutOrStdout(), " (%d entries)", job.EntriesSaved)
			}
			if job.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " - %s", job.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func industryPath(prefix, industry string, q url.Values) string {
	p := prefix + url.PathEscape(industry)
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	return p
}

func readDocument(stdin io.Reader, path string) (json.RawMessage, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read session document: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("session document is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func printRaw(w io.Writer, data json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}
