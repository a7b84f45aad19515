// Package display implements the display scheduler: the component that turns a stream
// of display requests into a single "now showing" slot.
//
// Requests arrive from the broadcast transport (or Enqueue) and wait in a FIFO queue.
// One goroutine per Scheduler owns the queue, the slot, the processing guard and both
// timers, and drives every item through the same cycle:
//
//	fade out (visible=false) -> wait FadeDelay -> dequeue -> swap slot ->
//	fade in (visible=true) -> hold for the item's duration -> repeat
//
// An arrival never interrupts the item that is fading or holding; it waits its turn.
// When the queue runs dry the last item stays on screen.
//
// Renderers never touch scheduler state. They read copies through Snapshot, or
// subscribe to StateTopic(screen) on the bus to be told about every slot change.
package display
