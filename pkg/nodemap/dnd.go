package nodemap

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// DragMarker is the data-transfer format that carries an agent descriptor.
const DragMarker = "application/reactflow"

// DataTransfer is the format-keyed content of a drop event.
type DataTransfer map[string]string

// Get returns the content stored under format.
func (d DataTransfer) Get(format string) string { return d[format] }

// NewDataTransfer wraps a descriptor the way a drag source does.
func NewDataTransfer(desc AgentDescriptor) (DataTransfer, error) {
	b, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	return DataTransfer{DragMarker: string(b)}, nil
}

var descriptorValidator = validator.New(validator.WithRequiredStructEnabled())

// ParseDescriptor decodes a drag payload. The id and name are trimmed. Empty
// input, malformed JSON and an id or name that is missing or blank all yield
// an error wrapping ErrInvalidDescriptor.
func ParseDescriptor(raw string) (AgentDescriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AgentDescriptor{}, fmt.Errorf("empty payload: %w", ErrInvalidDescriptor)
	}
	var desc AgentDescriptor
	if err := json.Unmarshal([]byte(raw), &desc); err != nil {
		return AgentDescriptor{}, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	desc.ID = ID(strings.TrimSpace(desc.ID.String()))
	desc.Name = strings.TrimSpace(desc.Name)
	if err := descriptorValidator.Struct(desc); err != nil {
		return AgentDescriptor{}, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	return desc, nil
}

// Instantiator turns drops onto the canvas surface into agent nodes.
type Instantiator struct {
	canvas    *Canvas
	scheduler *Scheduler
	opts      options
}

// NewInstantiator creates an Instantiator that adds nodes to canvas and
// schedules saves on scheduler.
func NewInstantiator(canvas *Canvas, scheduler *Scheduler, opts ...Option) *Instantiator {
	return &Instantiator{canvas: canvas, scheduler: scheduler, opts: buildOptions(opts)}
}

// Drop adds a node for the descriptor in data at the projected position of
// client within bounds and schedules a save. Drops without the marker, with
// a bad descriptor or onto an unloaded canvas are ignored and report false.
func (i *Instantiator) Drop(data DataTransfer, client Point, bounds Rect) (Node, bool) {
	desc, err := ParseDescriptor(data.Get(DragMarker))
	if err != nil {
		i.opts.logger.Debug("drop ignored", zap.Error(err))
		return Node{}, false
	}
	if !i.canvas.Ready() {
		i.opts.logger.Debug("drop ignored", zap.Error(ErrCanvasNotReady))
		return Node{}, false
	}

	node := Node{
		ID:       i.canvas.NextNodeID(),
		Type:     NodeTypeAgent,
		Position: i.canvas.Project(client, bounds),
		Data: NodeData{
			Label:      desc.Name,
			AgentID:    desc.ID,
			AgentType:  desc.Type,
			AgentModel: desc.Model,
		},
	}
	if err := i.canvas.AddNode(node); err != nil {
		i.opts.logger.Debug("drop ignored", zap.Error(err))
		return Node{}, false
	}
	i.scheduler.ScheduleSave()
	return node, true
}
