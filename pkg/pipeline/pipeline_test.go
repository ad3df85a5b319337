package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"msggate/pkg/bus"
	"msggate/pkg/config"
)

func TestRunAllContinueYieldsNoResponse(t *testing.T) {
	first := &recordingHandler{name: "first", result: Next()}
	second := &recordingHandler{name: "second", result: Next()}

	res, err := New(first, second).Run(context.Background(), privateMessage(1, 1, "hi"), nil)
	require.NoError(t, err)
	require.Equal(t, Continue, res.Outcome)
	require.Nil(t, res.Response)
	require.Equal(t, 1, first.calls)
	require.Equal(t, 1, second.calls)
}

func TestRunStopsAtFirstResponse(t *testing.T) {
	msg := privateMessage(1, 1, "hi")
	chat := bus.NewChatContext(msg)

	first := &recordingHandler{name: "first", result: Next()}
	responder := &recordingHandler{name: "responder", result: Respond(chat.Reply("stop"))}
	last := &recordingHandler{name: "last", result: Next()}

	res, err := New(first, responder, last).Run(context.Background(), msg, chat)
	require.NoError(t, err)
	require.Equal(t, Terminate, res.Outcome)
	require.Equal(t, "stop", res.Response.Text)
	require.Equal(t, "responder", res.Handler)
	require.Zero(t, last.calls)
}

func TestRunRejectStopsSilently(t *testing.T) {
	rejecter := &recordingHandler{name: "rejecter", result: Drop(ErrUnsupportedMessage)}
	last := &recordingHandler{name: "last", result: Next()}

	res, err := New(rejecter, last).Run(context.Background(), privateMessage(1, 1, ""), nil)
	require.NoError(t, err)
	require.Equal(t, Reject, res.Outcome)
	require.Nil(t, res.Response)
	require.ErrorIs(t, res.Reason, ErrUnsupportedMessage)
	require.True(t, IsSilentDrop(res.Reason))
	require.Equal(t, "rejecter", res.Handler)
	require.Zero(t, last.calls)
}

func TestRunRejectWithoutReasonDefaultsToSilentDrop(t *testing.T) {
	rejecter := &recordingHandler{name: "rejecter", result: Result{Outcome: Reject}}

	res, err := New(rejecter).Run(context.Background(), privateMessage(1, 1, ""), nil)
	require.NoError(t, err)
	require.ErrorIs(t, res.Reason, ErrSilentDrop)
}

func TestRunErrorPropagatesUnconverted(t *testing.T) {
	boom := errors.New("boom")
	failing := &recordingHandler{name: "failing", err: boom}
	last := &recordingHandler{name: "last", result: Next()}

	res, err := New(failing, last).Run(context.Background(), privateMessage(1, 1, "hi"), nil)
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "failing")
	require.False(t, IsSilentDrop(err))
	require.Nil(t, res.Response)
	require.Equal(t, "failing", res.Handler)
	require.Zero(t, last.calls)
}

func TestRunTerminateWithoutResponseContinues(t *testing.T) {
	empty := &recordingHandler{name: "empty", result: Result{Outcome: Terminate}}
	last := &recordingHandler{name: "last", result: Next()}

	res, err := New(empty, last).Run(context.Background(), privateMessage(1, 1, "hi"), nil)
	require.NoError(t, err)
	require.Equal(t, Continue, res.Outcome)
	require.Equal(t, 1, last.calls)
}

func TestRunUnknownOutcomeIsAnError(t *testing.T) {
	odd := &recordingHandler{name: "odd", result: Result{Outcome: Outcome(42)}}

	_, err := New(odd).Run(context.Background(), privateMessage(1, 1, "hi"), nil)
	require.ErrorContains(t, err, "outcome(42)")
}

func TestRespondNilIsNext(t *testing.T) {
	require.Equal(t, Continue, Respond(nil).Outcome)
}

func TestNewDefaultOrder(t *testing.T) {
	p := NewDefault(NewPolicy(config.GuardConfig{}), Deps{Store: newRecordingStore()})
	require.Equal(t, []string{"diagnostics", "env_check", "dedup", "auth", "content_type", "dispatch"}, p.Handlers())
}

func TestNewDefaultWithoutStoreReportsConfiguration(t *testing.T) {
	p := NewDefault(NewPolicy(config.GuardConfig{AllowAll: true, SafeMode: true, DebugMode: true}), Deps{})

	res, err := p.Run(context.Background(), privateMessage(1, 1, "hi"), nil)
	require.NoError(t, err)
	require.Equal(t, Terminate, res.Outcome)
	require.Equal(t, "env_check", res.Handler)
	require.Equal(t, storageMissingText, res.Response.Text)
}

func TestEarlierResponseLeavesDedupWindowUntouched(t *testing.T) {
	s := newRecordingStore()
	msg := privateMessage(1, 10, "hi")
	chat := bus.NewChatContext(msg)

	denier := &recordingHandler{name: "denier", result: Respond(chat.Reply("denied"))}
	dedup := NewDedupFilter(s, NewPolicy(config.GuardConfig{SafeMode: true}), nil)

	res, err := New(denier, dedup).Run(context.Background(), msg, chat)
	require.NoError(t, err)
	require.Equal(t, Terminate, res.Outcome)
	require.Empty(t, s.putCalls())

	_, err = s.Get(context.Background(), chat.DedupKey)
	require.Error(t, err)
}

func TestDefaultChainRejectsUnsupportedShapeRegardlessOfOtherFilters(t *testing.T) {
	policies := []config.GuardConfig{
		{AllowAll: true},
		{AllowAll: true, SafeMode: true, DebugMode: true},
		{ChatWhiteList: []string{"1"}, SafeMode: true},
	}

	for _, guard := range policies {
		p := NewDefault(NewPolicy(guard), Deps{Store: newRecordingStore()})
		sticker := bus.Message{ID: 5, Chat: bus.Chat{ID: 1, Type: bus.ChatTypePrivate}, Kind: "sticker"}

		res, err := p.Run(context.Background(), sticker, nil)
		require.NoError(t, err)
		require.Equal(t, Reject, res.Outcome, "guard %+v", guard)
		require.ErrorIs(t, res.Reason, ErrUnsupportedMessage)
		p.Close()
	}
}

func TestDefaultChainDispatchesAcceptedText(t *testing.T) {
	commands := CommandFunc(func(_ context.Context, msg bus.Message, chat *bus.ChatContext) (*bus.Response, error) {
		return chat.Reply("echo: " + msg.Body()), nil
	})
	p := NewDefault(NewPolicy(config.GuardConfig{ChatWhiteList: []string{"7"}, SafeMode: true}), Deps{
		Store:    newRecordingStore(),
		Commands: commands,
	})

	res, err := p.Run(context.Background(), privateMessage(7, 1, "ping"), nil)
	require.NoError(t, err)
	require.Equal(t, Terminate, res.Outcome)
	require.Equal(t, "dispatch", res.Handler)
	require.Equal(t, "echo: ping", res.Response.Text)

	res, err = p.Run(context.Background(), privateMessage(7, 1, "ping"), nil)
	require.NoError(t, err)
	require.Equal(t, Reject, res.Outcome)
	require.ErrorIs(t, res.Reason, ErrDuplicateMessage)
}
