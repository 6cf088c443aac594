package internal

// DoneChan is closed exactly once to signal that some background
// activity has finished.
type DoneChan chan struct{}

// DoneFunc starts an asynchronous teardown and returns the channel that
// closes when it completes.
type DoneFunc func() DoneChan
