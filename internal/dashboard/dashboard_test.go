package dashboard

import (
	"testing"

	"go.uber.org/zap"

	"github.com/edgarvilca/riego/internal/model"
)

type fakeMessage struct {
	topic     string
	payload   []byte
	duplicate bool
}

func (m *fakeMessage) Duplicate() bool   { return m.duplicate }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type fakeCommander struct {
	mode     model.Mode
	commands []string
	err      error
}

func (f *fakeCommander) Mode() model.Mode     { return f.mode }
func (f *fakeCommander) SetMode(m model.Mode) { f.mode = m }
func (f *fakeCommander) ManualCommand(dev model.Device, on bool) error {
	if f.err != nil {
		return f.err
	}
	state := "off"
	if on {
		state = "on"
	}
	f.commands = append(f.commands, string(dev)+" "+state)
	return nil
}

func newTestBridge(cmd Commander) *Bridge {
	return NewBridge(nil, cmd, zap.NewNop().Sugar())
}

func dispatch(t *testing.T, b *Bridge, topic, payload string) error {
	t.Helper()
	msg := &fakeMessage{topic: topic, payload: []byte(payload)}
	return b.handle(topic, msg)
}

func TestHandleModeCommand(t *testing.T) {
	cmd := &fakeCommander{mode: model.ModeAuto}
	b := newTestBridge(cmd)

	if err := dispatch(t, b, topicCmdMode, `{"mode":"manual"}`); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if cmd.mode != model.ModeManual {
		t.Fatalf("mode = %s, want manual", cmd.mode)
	}

	if err := dispatch(t, b, topicCmdMode, `{"mode":"turbo"}`); err == nil {
		t.Fatal("unknown mode should be rejected")
	}
	if err := dispatch(t, b, topicCmdMode, `not json`); err == nil {
		t.Fatal("broken payload should be rejected")
	}
}

func TestHandleActuatorCommand(t *testing.T) {
	cmd := &fakeCommander{mode: model.ModeManual}
	b := newTestBridge(cmd)

	if err := dispatch(t, b, topicCmdActuatorBase+"pump", `{"on":true}`); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(cmd.commands) != 1 || cmd.commands[0] != "pump on" {
		t.Fatalf("commands = %v", cmd.commands)
	}

	if err := dispatch(t, b, topicCmdActuatorBase+"heater", `{"on":true}`); err == nil {
		t.Fatal("unknown device should be rejected")
	}
}

func TestHandleDropsRedeliveryByID(t *testing.T) {
	cmd := &fakeCommander{mode: model.ModeManual}
	b := newTestBridge(cmd)

	payload := `{"id":"c1","on":true}`
	if err := dispatch(t, b, topicCmdActuatorBase+"pump", payload); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := dispatch(t, b, topicCmdActuatorBase+"pump", payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(cmd.commands) != 1 {
		t.Fatalf("commands = %v, redelivery must not re-apply", cmd.commands)
	}

	// The same id on another topic is a distinct command.
	if err := dispatch(t, b, topicCmdActuatorBase+"fertilizer_injector", `{"id":"c1","on":true}`); err != nil {
		t.Fatalf("other device: %v", err)
	}
	if len(cmd.commands) != 2 {
		t.Fatalf("commands = %v, want the other device applied", cmd.commands)
	}
}

func TestHandleDropsBrokerFlaggedRedelivery(t *testing.T) {
	cmd := &fakeCommander{mode: model.ModeManual}
	b := newTestBridge(cmd)

	payload := []byte(`{"on":true}`)
	topic := topicCmdActuatorBase + "pump"
	if err := b.handle(topic, &fakeMessage{topic: topic, payload: payload}); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := b.handle(topic, &fakeMessage{topic: topic, payload: payload, duplicate: true}); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(cmd.commands) != 1 {
		t.Fatalf("commands = %v, flagged redelivery must not re-apply", cmd.commands)
	}
}

func TestHandleRepeatedToggleApplies(t *testing.T) {
	cmd := &fakeCommander{mode: model.ModeManual}
	b := newTestBridge(cmd)

	// An operator toggling on, off, on again: every delivery is a fresh
	// command and must apply, even with identical payloads.
	for _, payload := range []string{`{"on":true}`, `{"on":false}`, `{"on":true}`} {
		if err := dispatch(t, b, topicCmdActuatorBase+"pump", payload); err != nil {
			t.Fatalf("dispatch %s: %v", payload, err)
		}
	}
	want := []string{"pump on", "pump off", "pump on"}
	if len(cmd.commands) != 3 {
		t.Fatalf("commands = %v, want %v", cmd.commands, want)
	}
	for i, w := range want {
		if cmd.commands[i] != w {
			t.Fatalf("commands = %v, want %v", cmd.commands, want)
		}
	}
}

func TestHandleRepeatedToggleWithIDsApplies(t *testing.T) {
	cmd := &fakeCommander{mode: model.ModeManual}
	b := newTestBridge(cmd)

	// Distinct ids mark distinct operator actions regardless of payload.
	for _, payload := range []string{
		`{"id":"c1","on":true}`,
		`{"id":"c2","on":false}`,
		`{"id":"c3","on":true}`,
	} {
		if err := dispatch(t, b, topicCmdActuatorBase+"pump", payload); err != nil {
			t.Fatalf("dispatch %s: %v", payload, err)
		}
	}
	if len(cmd.commands) != 3 {
		t.Fatalf("commands = %v, want all three applied", cmd.commands)
	}
}
