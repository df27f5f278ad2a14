package port

import "context"

// EventListenerPort — входящий адаптер, слушающий внешние события
// (очередь задач) и вызывающий ядро.
type EventListenerPort interface {
	Start(ctx context.Context) error
	Close() error
}
