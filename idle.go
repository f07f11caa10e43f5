package imap

// Idler drives entry and exit of the IMAP IDLE extension for one connection.
// The session core tells it what the server acknowledged; the idler owns
// actually writing IDLE and DONE to the wire.
type Idler interface {
	// IdleStart is called when the server acknowledges IDLE entry ("+ idling").
	IdleStart()

	// IdleEnd is called when the server confirms IDLE termination.
	IdleEnd()

	// Done asks the idler to end the current long poll. Requested at most
	// once per IDLE cycle, on the first accumulated mailbox change.
	Done()

	// Disconnect is called when the session is being abandoned: release any
	// blocked long-poll wait and tear the transport down.
	Disconnect()
}

// MailboxObserver receives the net mailbox changes of one IDLE cycle.
type MailboxObserver interface {
	// Changed is called at most once per IDLE cycle. Either set is nil when
	// nothing changed in that category since IDLE entry; nil is not an error.
	Changed(adds, removes map[int]struct{})
}

// pushDiff accumulates mailbox sequence-number changes for one IDLE cycle.
// A number is never present in both sets: noting it in one evicts it from
// the other, so the observer sees only the net effect.
type pushDiff struct {
	exitSignaled bool
	adds         map[int]struct{}
	removes      map[int]struct{}
}

func newPushDiff() *pushDiff {
	return &pushDiff{
		adds:    make(map[int]struct{}),
		removes: make(map[int]struct{}),
	}
}

func (p *pushDiff) noteExists(n int) {
	p.adds[n] = struct{}{}
	delete(p.removes, n)
}

// noteExpunge coalesces asymmetrically: expunging a message whose arrival
// was seen in the same cycle nets to nothing, while expunges of previously
// known messages survive as removes.
func (p *pushDiff) noteExpunge(n int) {
	if _, ok := p.adds[n]; ok {
		delete(p.adds, n)
		return
	}
	p.removes[n] = struct{}{}
}

// net returns the accumulated sets with nil standing in for "no changes in
// this category".
func (p *pushDiff) net() (adds, removes map[int]struct{}) {
	if len(p.adds) > 0 {
		adds = p.adds
	}
	if len(p.removes) > 0 {
		removes = p.removes
	}
	return adds, removes
}
