package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"msggate/pkg/bus"
	"msggate/pkg/command"
	"msggate/pkg/config"
	"msggate/pkg/logger"
	"msggate/pkg/pipeline"
	"msggate/pkg/store"
	"msggate/pkg/ui/console"

	"github.com/spf13/cobra"
)

var (
	checkText      string
	checkChatID    int64
	checkChatType  string
	checkMessageID int64
	checkConsole   bool
)

const resendInput = "!again"

// checkCmd runs messages through the pipeline once and prints the outcome.
var checkCmd = &cobra.Command{
	Use:   "check [message-json...]",
	Short: "Run messages through the gatekeeping pipeline",
	Long: "Loads configuration, opens the configured store, and runs each message through the pipeline.\n" +
		"Messages are JSON objects given as arguments or one per line on stdin, or built from --text.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		slog.SetDefault(appLogger)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		kv, err := store.Open(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
		}
		defer func() { _ = store.Close(kv) }()

		p := pipeline.NewDefault(pipeline.NewPolicy(cfg.Guard), pipeline.Deps{
			Store:    kv,
			Commands: command.NewRouter(),
			Log:      appLogger,
		})
		defer p.Close()

		if checkConsole {
			session := newConsoleSession(p, bus.Chat{ID: checkChatID, Type: bus.ParseChatType(checkChatType)}, checkMessageID)
			return console.Run(ctx, session.check, console.SessionInfo{
				ChatID:   strconv.FormatInt(checkChatID, 10),
				ChatType: string(bus.ParseChatType(checkChatType)),
				Storage:  cfg.Storage.Driver,
				SafeMode: cfg.Guard.SafeMode,
			})
		}

		if strings.TrimSpace(checkText) != "" {
			args = append(args, flagMessageJSON())
		}

		return runCheck(ctx, p, args, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkText, "text", "t", "", "message text to check")
	checkCmd.Flags().Int64Var(&checkChatID, "chat-id", 0, "chat id for --text")
	checkCmd.Flags().StringVar(&checkChatType, "chat-type", string(bus.ChatTypePrivate), "chat type for --text")
	checkCmd.Flags().Int64Var(&checkMessageID, "message-id", 1, "message id for --text, first id in console mode")
	checkCmd.Flags().BoolVarP(&checkConsole, "interactive", "i", false, "open the interactive pipeline console")
}

func flagMessageJSON() string {
	data, _ := json.Marshal(bus.Message{
		ID:   checkMessageID,
		Chat: bus.Chat{ID: checkChatID, Type: bus.ParseChatType(checkChatType)},
		Text: checkText,
	})
	return string(data)
}

// runCheck evaluates messages from args, or from stdin lines when args is
// empty. Invalid input is reported and skipped.
func runCheck(ctx context.Context, p *pipeline.Pipeline, args []string, in io.Reader, out io.Writer) error {
	if len(args) > 0 {
		for _, raw := range args {
			checkOne(ctx, p, raw, out)
		}
		return nil
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		checkOne(ctx, p, line, out)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func checkOne(ctx context.Context, p *pipeline.Pipeline, raw string, out io.Writer) {
	msg, err := parseMessage(raw)
	if err != nil {
		fmt.Fprintf(out, "invalid message: %v\n", err)
		return
	}

	res, err := p.Run(ctx, msg, nil)
	fmt.Fprintln(out, formatOutcome(msg, res, err))
}

func parseMessage(raw string) (bus.Message, error) {
	var msg bus.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return bus.Message{}, err
	}
	msg.Chat.Type = bus.ParseChatType(string(msg.Chat.Type))
	if msg.Channel == "" {
		msg.Channel = "cli"
	}
	return msg, nil
}

func formatOutcome(msg bus.Message, res pipeline.Result, err error) string {
	prefix := fmt.Sprintf("chat=%d message=%d", msg.Chat.ID, msg.ID)
	if err != nil {
		return fmt.Sprintf("%s outcome=error handler=%s error=%q", prefix, res.Handler, err.Error())
	}

	switch res.Outcome {
	case pipeline.Terminate:
		return fmt.Sprintf("%s outcome=%s handler=%s reply=%q", prefix, res.Outcome, res.Handler, res.Response.Text)
	case pipeline.Reject:
		return fmt.Sprintf("%s outcome=%s handler=%s reason=%q", prefix, res.Outcome, res.Handler, res.Reason.Error())
	default:
		return fmt.Sprintf("%s outcome=%s", prefix, res.Outcome)
	}
}

// consoleSession turns console input into messages for one chat, numbering
// them sequentially.
type consoleSession struct {
	pipeline *pipeline.Pipeline
	chat     bus.Chat
	nextID   int64
	last     *bus.Message
}

func newConsoleSession(p *pipeline.Pipeline, chat bus.Chat, firstID int64) *consoleSession {
	return &consoleSession{pipeline: p, chat: chat, nextID: firstID}
}

// check runs input as the next message. resendInput repeats the previous
// message with its id, which exercises the dedup window.
func (s *consoleSession) check(ctx context.Context, input string) (console.Verdict, error) {
	var msg bus.Message
	if strings.TrimSpace(input) == resendInput && s.last != nil {
		msg = *s.last
	} else {
		msg = bus.Message{Channel: "cli", ID: s.nextID, Chat: s.chat, Text: input}
		s.nextID++
		s.last = &msg
	}

	res, err := s.pipeline.Run(ctx, msg, nil)
	if err != nil {
		return console.Verdict{}, err
	}
	return toVerdict(res), nil
}

func toVerdict(res pipeline.Result) console.Verdict {
	switch res.Outcome {
	case pipeline.Terminate:
		return console.Verdict{Kind: console.VerdictReply, Handler: res.Handler, Text: res.Response.Text}
	case pipeline.Reject:
		return console.Verdict{Kind: console.VerdictDropped, Handler: res.Handler, Text: res.Reason.Error()}
	default:
		return console.Verdict{Kind: console.VerdictPassed}
	}
}
