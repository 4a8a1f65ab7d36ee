package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"firerag/internal/adapter/cache"
	"firerag/internal/adapter/store"
	"firerag/internal/domain"
	"firerag/internal/server"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question answering",
	Long: `Start an interactive session. Each question runs the full
retrieve-rerank-generate pipeline and the structured answer is
rendered as markdown.

Type /quit to exit.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	ix, err := store.OpenIndex(GetDataDir())
	if err != nil {
		return err
	}
	defer ix.Close()

	ttl := time.Duration(cfg.Retrieve.CacheTTLSeconds) * time.Second
	queryCache := cache.NewQueryCache(cfg.Retrieve.CacheSize, ttl)

	generator, err := server.BuildGenerator(cfg, ix, queryCache, GetLogger())
	if err != nil {
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "firerag> ",
		HistoryFile:     filepath.Join(os.TempDir(), "firerag_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to start prompt: %w", err)
	}
	defer rl.Close()

	fmt.Printf("firerag chat, index generation %d (%d chunks). Type /quit to exit.\n\n",
		ix.Manifest.Generation, ix.Manifest.TotalChunks)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		}
		if err == io.EOF {
			break
		}

		question := strings.TrimSpace(line)
		switch question {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		answer, err := generator.Answer(cmd.Context(), question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		out, err := renderer.Render(answerMarkdown(answer))
		if err != nil {
			fmt.Println(answerMarkdown(answer))
			continue
		}
		fmt.Print(out)
	}

	return nil
}

// answerMarkdown formats a structured answer for terminal rendering.
func answerMarkdown(a *domain.Answer) string {
	var sb strings.Builder

	sb.WriteString("# " + a.Body.Title + "\n\n")
	sb.WriteString(a.Body.Summary + "\n")

	if len(a.Body.Steps) > 0 {
		sb.WriteString("\n## Steps\n\n")
		for i, step := range a.Body.Steps {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
		}
	}
	if len(a.Body.Verification) > 0 {
		sb.WriteString("\n## Verification\n\n")
		for _, v := range a.Body.Verification {
			sb.WriteString("- " + v + "\n")
		}
	}
	if len(a.Links) > 0 {
		sb.WriteString("\n## Sources\n\n")
		for _, link := range a.Links {
			sb.WriteString("- " + link + "\n")
		}
	}
	if len(a.Media.Images) > 0 {
		sb.WriteString("\n## Media\n\n")
		for _, img := range a.Media.Images {
			sb.WriteString("- " + img + "\n")
		}
	}

	return sb.String()
}
