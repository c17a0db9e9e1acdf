package accessory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hublink/internal/transport"
)

// SetSender attaches the command dispatcher. Without one, inbound
// commands are acknowledged as failed.
func (p *Presenter) SetSender(s CommandSender) {
	p.sender = s
}

// Start subscribes to the accessory command topics. Commands dispatched
// afterwards derive their context from ctx.
func (p *Presenter) Start(ctx context.Context) error {
	if p.bus == nil {
		return ErrNoBus
	}
	p.baseCtx = ctx

	topic := p.topics.AllAccessoryCommands()
	if err := p.bus.Subscribe(topic, p.qos, p.handleCommand); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	p.logger.Info("accessory command listener started", "topic", topic)
	return nil
}

// Wait blocks until in-flight commands have been acknowledged.
func (p *Presenter) Wait() {
	p.wg.Wait()
}

// handleCommand validates an inbound command and dispatches it in the
// background so the MQTT delivery goroutine is never blocked on the hub.
func (p *Presenter) handleCommand(topic string, payload []byte) error {
	accessoryID, ok := p.topics.ParseAccessoryCommand(topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %s", ErrInvalidCommand, topic)
	}

	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		p.ack(accessoryID, "", msg, AckFailed, "", ErrCodeInvalidCommand, "payload is not valid JSON")
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Command == "" {
		p.ack(accessoryID, "", msg, AckFailed, "", ErrCodeInvalidCommand, "command is required")
		return fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}

	deviceID, ok := p.deviceFor(accessoryID)
	if !ok {
		p.ack(accessoryID, "", msg, AckFailed, "", ErrCodeUnknownAccessory, "no device for accessory")
		return fmt.Errorf("%w: %s", ErrUnknownAccessory, accessoryID)
	}
	if p.sender == nil {
		p.ack(accessoryID, deviceID, msg, AckFailed, "", ErrCodeSendFailed, "command dispatch not configured")
		return nil
	}

	name := deviceID
	if p.cache != nil {
		if rec, found := p.cache.Get(deviceID); found {
			name = rec.Name
		}
	}

	cmd := transport.Command{
		DeviceID:   deviceID,
		DeviceName: name,
		Name:       msg.Command,
		Values:     msg.Values,
	}
	p.logger.Debug("accessory command received",
		"accessory_id", accessoryID,
		"device_id", deviceID,
		"command", msg.Command,
		"source", msg.Source,
	)

	notify := transport.NewNotifier(func(res transport.Result) {
		p.ackResult(accessoryID, deviceID, msg, res)
	})

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(p.baseCtx, p.timeout)
		defer cancel()
		_ = p.sender.SendCommand(ctx, cmd, notify) //nolint:errcheck // outcome arrives through notify
	}()
	return nil
}

func (p *Presenter) ackResult(accessoryID, deviceID string, msg CommandMessage, res transport.Result) {
	if res.OK() {
		p.ack(accessoryID, deviceID, msg, AckSent, string(res.Route), "", "")
		return
	}

	status, code := AckFailed, ErrCodeSendFailed
	switch transport.Classify(res.Err) {
	case transport.FailureTimeout:
		status, code = AckTimeout, ErrCodeTimeout
	case transport.FailureRejected:
		code = ErrCodeRejected
	}
	p.ack(accessoryID, deviceID, msg, status, string(res.Route), code, res.Err.Error())
}

func (p *Presenter) ack(accessoryID, deviceID string, msg CommandMessage, status AckStatus, route, code, message string) {
	ack := AckMessage{
		CommandID:   msg.ID,
		AccessoryID: accessoryID,
		DeviceID:    deviceID,
		Command:     msg.Command,
		Status:      status,
		Route:       route,
		Timestamp:   time.Now().UTC(),
	}
	if code != "" {
		ack.Error = &AckError{Code: code, Message: message}
	}
	p.publishJSON(p.topics.AccessoryAck(accessoryID), ack, false)
	p.broadcast(ChannelAck, ack)
}
