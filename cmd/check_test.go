package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"msggate/pkg/bus"
	"msggate/pkg/command"
	"msggate/pkg/config"
	"msggate/pkg/logger"
	"msggate/pkg/pipeline"
	"msggate/pkg/store"
	"msggate/pkg/ui/console"

	"github.com/stretchr/testify/require"
)

func newCheckPipeline(guard config.GuardConfig) *pipeline.Pipeline {
	return pipeline.NewDefault(pipeline.NewPolicy(guard), pipeline.Deps{
		Store:    store.NewMemoryStore(),
		Commands: command.NewRouter(),
		Log:      logger.Discard(),
	})
}

func TestRunCheckFromArgs(t *testing.T) {
	p := newCheckPipeline(config.GuardConfig{SafeMode: true, ChatWhiteList: []string{"7"}})

	var out bytes.Buffer
	err := runCheck(context.Background(), p, []string{
		`{"message_id":1,"chat":{"id":7,"type":"private"},"text":"/id"}`,
		`{"message_id":1,"chat":{"id":7,"type":"private"},"text":"/id"}`,
		`{"message_id":2,"chat":{"id":8,"type":"private"},"text":"hi"}`,
		`not json`,
	}, nil, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, `chat=7 message=1 outcome=terminate handler=dispatch reply="Your chat_id: 7"`, lines[0])
	require.Contains(t, lines[1], "outcome=reject handler=dedup")
	require.Contains(t, lines[2], "outcome=terminate handler=auth")
	require.Contains(t, lines[2], "Your chat_id: 8")
	require.True(t, strings.HasPrefix(lines[3], "invalid message:"))
}

func TestRunCheckFromStdin(t *testing.T) {
	p := newCheckPipeline(config.GuardConfig{AllowAll: true})

	in := strings.NewReader("\n" +
		`{"message_id":1,"chat":{"id":-5,"type":"supergroup"},"text":"hello"}` + "\n" +
		`{"message_id":2,"chat":{"id":-5,"type":"supergroup"}}` + "\n")

	var out bytes.Buffer
	require.NoError(t, runCheck(context.Background(), p, nil, in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, []string{
		"chat=-5 message=1 outcome=continue",
		`chat=-5 message=2 outcome=reject handler=content_type reason="silent drop: unsupported message shape"`,
	}, lines)
}

func TestParseMessageNormalizes(t *testing.T) {
	msg, err := parseMessage(`{"message_id":3,"chat":{"id":1,"type":"weird"}}`)
	require.NoError(t, err)
	require.Equal(t, bus.ChatTypeOther, msg.Chat.Type)
	require.Equal(t, "cli", msg.Channel)
}

func TestFormatOutcomeError(t *testing.T) {
	got := formatOutcome(bus.Message{ID: 1, Chat: bus.Chat{ID: 2}}, pipeline.Result{Handler: "dedup"}, errors.New("dedup: down"))
	require.Equal(t, `chat=2 message=1 outcome=error handler=dedup error="dedup: down"`, got)
}

func TestConsoleSessionNumbersAndResends(t *testing.T) {
	p := newCheckPipeline(config.GuardConfig{SafeMode: true, ChatWhiteList: []string{"7"}})
	session := newConsoleSession(p, bus.Chat{ID: 7, Type: bus.ChatTypePrivate}, 10)

	verdict, err := session.check(context.Background(), "/id")
	require.NoError(t, err)
	require.Equal(t, console.Verdict{Kind: console.VerdictReply, Handler: "dispatch", Text: "Your chat_id: 7"}, verdict)

	verdict, err = session.check(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, console.VerdictPassed, verdict.Kind)
	require.Equal(t, int64(12), session.nextID)

	verdict, err = session.check(context.Background(), resendInput)
	require.NoError(t, err)
	require.Equal(t, console.VerdictDropped, verdict.Kind)
	require.Equal(t, "dedup", verdict.Handler)
}
