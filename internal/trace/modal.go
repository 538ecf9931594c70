package trace

import "context"

// RaceModal runs action concurrently with a one-shot listener for a new
// modal appearing on page. An empty result means the action completed
// normally; a non-empty result means a modal interrupted it.
//
// If a modal is already active at call time the full existing list is
// returned synchronously without starting the action; a dialog blocks
// the main thread so the action could not run anyway. When a
// modal wins the race the action is not cancelled; it is left to settle
// on its own.
func RaceModal(ctx context.Context, page Page, action func(context.Context) error) ([]ModalState, error) {
	if active := page.ActiveModals(); len(active) > 0 {
		return active, nil
	}

	modalCh := make(chan ModalState, 1)
	detach := page.OnModal(func(m ModalState) {
		select {
		case modalCh <- m:
		default:
		}
	})
	defer detach()

	var interrupt ModalState
	winner, err := First(ctx,
		action,
		func(c context.Context) error {
			select {
			case m := <-modalCh:
				interrupt = m
				return nil
			case <-c.Done():
				return c.Err()
			}
		},
	)
	if winner == 1 && err == nil {
		return []ModalState{interrupt}, nil
	}
	if winner < 0 {
		return nil, err
	}
	return nil, err
}
