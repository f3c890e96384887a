package ports

import "context"

// Job is a unit of background work run by the dispatcher.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}
