package models

// RecordState is where a record stands within one run.
//
//	Pending -> Reconciling -> Reconciled -> OrderPending -> Ordered | OrderFailed
//	                       \-> ReconciliationFailed
type RecordState string

const (
	StatePending              RecordState = "pending"
	StateReconciling          RecordState = "reconciling"
	StateReconciled           RecordState = "reconciled"
	StateReconciliationFailed RecordState = "reconciliation_failed"
	StateOrderPending         RecordState = "order_pending"
	StateOrdered              RecordState = "ordered"
	StateOrderFailed          RecordState = "order_failed"
)

var transitions = map[RecordState][]RecordState{
	StatePending:      {StateReconciling},
	StateReconciling:  {StateReconciled, StateReconciliationFailed},
	StateReconciled:   {StateOrderPending},
	StateOrderPending: {StateOrdered, StateOrderFailed},
}

// Terminal reports whether no further transition is allowed within a run.
// Reconciled is not terminal: a customers run stops there, but a sweep may
// still move the record on to an order.
func (s RecordState) Terminal() bool {
	switch s {
	case StateOrdered, StateOrderFailed, StateReconciliationFailed:
		return true
	}
	return false
}

// CanTransition reports whether s may move to next.
func (s RecordState) CanTransition(next RecordState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reaches reports whether next is s or lies on some path forward from s.
func (s RecordState) Reaches(next RecordState) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	for _, step := range transitions[s] {
		if step.Reaches(next) {
			return true
		}
	}
	return false
}
