// Package gather provides completion-ordered iteration over a fixed set
// of futures, in the spirit of Python's [asyncio.as_completed]: a Body
// awaits Iter.Next repeatedly and gets back whichever remaining future
// finished first, regardless of the order the set was given in.
//
// [asyncio.as_completed]: https://docs.python.org/3/library/asyncio-task.html#asyncio.as_completed
package gather
