package device

import "github.com/llehouerou/segue/internal/backend"

const eventBufferSize = 16

// Changed is emitted when the active output device changes, either by
// user selection or by fallback after the previous device disappeared.
type Changed struct {
	Device backend.Device
}

// ListChanged is emitted when the set of enabled output devices changes.
type ListChanged struct {
	Devices []backend.Device
}

// NeedsReacquisition is emitted when the active device must be rebound,
// e.g. after an exclusive-access switch.
type NeedsReacquisition struct {
	Device    backend.Device
	Exclusive bool
}

// Lost is emitted when the active device disappeared and no output
// device remains.
type Lost struct{}

// Subscription provides event channels for one subscriber.
type Subscription struct {
	Changed            <-chan Changed
	ListChanged        <-chan ListChanged
	NeedsReacquisition <-chan NeedsReacquisition
	Lost               <-chan Lost
	Done               <-chan struct{}

	changedCh chan Changed
	listCh    chan ListChanged
	reacqCh   chan NeedsReacquisition
	lostCh    chan Lost
	doneCh    chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		changedCh: make(chan Changed, eventBufferSize),
		listCh:    make(chan ListChanged, eventBufferSize),
		reacqCh:   make(chan NeedsReacquisition, eventBufferSize),
		lostCh:    make(chan Lost, eventBufferSize),
		doneCh:    make(chan struct{}),
	}
	s.Changed = s.changedCh
	s.ListChanged = s.listCh
	s.NeedsReacquisition = s.reacqCh
	s.Lost = s.lostCh
	s.Done = s.doneCh
	return s
}

func (s *Subscription) close() {
	close(s.doneCh)
}

// Sends are non-blocking: a slow subscriber drops events rather than
// stalling the registry.

func (s *Subscription) sendChanged(e Changed) {
	select {
	case s.changedCh <- e:
	default:
	}
}

func (s *Subscription) sendListChanged(e ListChanged) {
	select {
	case s.listCh <- e:
	default:
	}
}

func (s *Subscription) sendNeedsReacquisition(e NeedsReacquisition) {
	select {
	case s.reacqCh <- e:
	default:
	}
}

func (s *Subscription) sendLost() {
	select {
	case s.lostCh <- Lost{}:
	default:
	}
}
