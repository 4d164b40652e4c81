package registry

import (
	"fcsrv/internal/predictor"
	"fcsrv/internal/variant"
	"fcsrv/pkg/types"
)

// Status lists every slot that has been requested, in ordinal order.
func (r *Registry) Status() []types.PredictorStatus {
	out := make([]types.PredictorStatus, 0)
	for i := range r.slots {
		s := &r.slots[i]
		st := State(s.state.Load())
		if st == StateEmpty {
			continue
		}
		ps := types.PredictorStatus{Variant: variant.Variant(i).String(), State: st.String()}
		if e := s.ready.Load(); e != nil {
			ps.State = StateReady.String()
			ps.Active = e.p.Active()
			ps.ReadyAt = e.readyAt.Unix()
			if err := predictor.Err(e.p); err != nil {
				ps.Error = err.Error()
			}
		}
		out = append(out, ps)
	}
	return out
}

// State returns the slot state of v.
func (r *Registry) State(v variant.Variant) State {
	if !v.Valid() {
		return StateEmpty
	}
	return State(r.slots[v].state.Load())
}
