package metrics

import (
	"raichain/block"
	"raichain/process"
	"raichain/raierr"
)

// ProcessObserver adapts a Handle to process.Observer, counting every
// processor outcome by operation and result code.
type ProcessObserver struct{ h *Handle }

// NewProcessObserver builds a ProcessObserver over h.
func NewProcessObserver(h *Handle) *ProcessObserver { return &ProcessObserver{h: h} }

func (o *ProcessObserver) OnBlock(op process.Operation, _ *block.Block, code raierr.Code) {
	o.h.ProcessorOpsTotal.WithLabelValues(opName(op), code.String()).Inc()
}

func opName(op process.Operation) string {
	switch op {
	case process.OpAppend:
		return "append"
	case process.OpPrepend:
		return "prepend"
	case process.OpRollback:
		return "rollback"
	case process.OpConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}
