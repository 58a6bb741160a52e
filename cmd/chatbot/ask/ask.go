package askcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/localchat/chatbot/pkg/client"
	"github.com/localchat/chatbot/pkg/config"
	"github.com/localchat/chatbot/pkg/llm"
	"github.com/localchat/chatbot/pkg/sanitize"
)

const askLongDesc string = `Smoke-test a running chat server with questions from a file.

Reads at least three non-empty lines from the questions file and runs
two checks against the server:

  1. a single question (line 1) with a system prompt
  2. a two-turn conversation (lines 2 and 3) that carries history

Answers are written to the results file. Failed calls are recorded as
"[ERROR] ..." lines instead of aborting the run. If the questions file
does not exist a sample is written and the command exits.

The bearer token is taken from CHAT_BOT_API_KEY when set.

Examples:
  chatbot ask
  chatbot ask --server http://192.168.1.42:8000 --input questions.txt
  chatbot ask --render`

const askShortDesc string = "Smoke-test a chat server"

const defaultSystemPrompt = "You are a warm, gentle and friendly assistant. Answer without lengthy explanations."

var sampleQuestions = []string{
	"Hello, please introduce yourself.",
	"What is the capital of China?",
	"What is the weather like there?",
}

var (
	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type askCommander struct {
	serverURL    string
	inputPath    string
	outputPath   string
	systemPrompt string
	model        string
	maxTokens    int
	temperature  float64
	pause        time.Duration
	render       bool

	out      io.Writer
	client   *client.Client
	renderer *glamour.TermRenderer
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.serverURL, "server", "s", "http://127.0.0.1:8000", "Chat server URL")
	cmd.Flags().StringVarP(&cmder.inputPath, "input", "i", "test.txt", "Questions file, one per line")
	cmd.Flags().StringVarP(&cmder.outputPath, "output", "o", "test_result.txt", "Results file")
	cmd.Flags().StringVar(&cmder.systemPrompt, "system", defaultSystemPrompt, "System prompt sent with every check")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "Qwen3-1.7B_quantized", "Model name sent in requests")
	cmd.Flags().IntVar(&cmder.maxTokens, "max-tokens", 1024, "max_tokens sent in requests")
	cmd.Flags().Float64Var(&cmder.temperature, "temperature", 0.7, "temperature sent in requests")
	cmd.Flags().DurationVar(&cmder.pause, "pause", 500*time.Millisecond, "Pause between the two checks")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render answers as markdown when writing to a terminal")

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command) error {
	c.out = cmd.OutOrStdout()

	questions, err := readQuestions(c.inputPath)
	if errors.Is(err, fs.ErrNotExist) {
		if err := writeSample(c.inputPath); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Input file %s did not exist, wrote a sample. Edit it and run again.\n", c.inputPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read questions: %w", err)
	}
	if len(questions) < 3 {
		return fmt.Errorf("%s needs at least 3 non-empty lines, found %d", c.inputPath, len(questions))
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	c.client = client.New(c.serverURL, client.WithAPIKey(os.Getenv(config.EnvAPIKey)))

	if c.render && isTerminal(c.out) {
		c.renderer, err = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return fmt.Errorf("could not create markdown renderer: %w", err)
		}
	}

	results, err := os.Create(c.outputPath)
	if err != nil {
		return fmt.Errorf("could not create results file: %w", err)
	}
	defer results.Close()

	fmt.Fprintln(c.out, headingStyle.Render("Running checks against "+c.serverURL))

	// Single question
	fmt.Fprintln(c.out, headingStyle.Render("Single question"))
	q1 := questions[0]
	a1 := c.ask(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: c.systemPrompt},
		{Role: llm.RoleUser, Content: q1},
	})
	c.show(q1, a1)
	fmt.Fprintf(results, "--- Single question ---\nQ1: %s\nA1: %s\n\n", q1, a1)

	select {
	case <-time.After(c.pause):
	case <-ctx.Done():
		return ctx.Err()
	}

	// Conversation
	fmt.Fprintln(c.out, headingStyle.Render("Conversation"))
	history := []llm.Message{{Role: llm.RoleSystem, Content: c.systemPrompt}}

	q2 := questions[1]
	history = append(history, llm.Message{Role: llm.RoleUser, Content: q2})
	a2 := c.ask(ctx, history)
	c.show(q2, a2)
	history = append(history, llm.Message{Role: llm.RoleAssistant, Content: a2})

	q3 := questions[2]
	history = append(history, llm.Message{Role: llm.RoleUser, Content: q3})
	a3 := c.ask(ctx, history)
	c.show(q3, a3)

	fmt.Fprintf(results, "--- Conversation ---\nQ2: %s\nA2: %s\n\nQ3: %s\nA3: %s\n\n", q2, a2, q3, a3)

	if err := results.Close(); err != nil {
		return fmt.Errorf("could not write results file: %w", err)
	}

	fmt.Fprintf(c.out, "All checks done, results written to %s\n", c.outputPath)
	return nil
}

// ask returns the assistant's answer, or an "[ERROR] ..." line.
func (c *askCommander) ask(ctx context.Context, messages []llm.Message) string {
	maxTokens := c.maxTokens
	temperature := c.temperature

	resp, err := c.client.Chat(ctx, &llm.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "[ERROR] request failed: " + err.Error()
	}
	if len(resp.Choices) == 0 {
		return "[ERROR] response has no choices"
	}

	answer := resp.Choices[0].Message.Content
	if _, after, found := strings.Cut(answer, sanitize.ThinkClose); found {
		answer = strings.TrimSpace(after)
	}
	return answer
}

func (c *askCommander) show(question, answer string) {
	fmt.Fprintln(c.out, questionStyle.Render("Q: "+question))

	if strings.HasPrefix(answer, "[ERROR]") {
		fmt.Fprintln(c.out, errorStyle.Render(answer))
		return
	}

	if c.renderer != nil {
		if rendered, err := c.renderer.Render(answer); err == nil {
			fmt.Fprint(c.out, rendered)
			return
		}
	}
	fmt.Fprintln(c.out, "A: "+answer)
}

func readQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			questions = append(questions, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return questions, nil
}

func writeSample(path string) error {
	data := strings.Join(sampleQuestions, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("could not write sample questions: %w", err)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
