// Package irq provides the critical sections that guard state shared between
// interrupt handlers and the main loop.
//
// The model is a single core: a critical section masks every interrupt, so a
// handler never observes a half-finished read-modify-write. Sections must be
// kept short and must not nest. Retargeting to a multi-core part needs a real
// spinlock or atomics here.
package irq
