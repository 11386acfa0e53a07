// Package search builds index-aware filtered queries over patients.
//
// A Spec combines free text, demographic brackets, and visit date
// ranges. The plan leads with the most selective indexed predicate
// (exact reference number, then last-name prefix, then birth-date
// range, then visit range) and applies the rest as residual filters, so
// a narrowed scan never materializes the whole table.
//
// Age arithmetic works on civil dates only. The same search run at
// 23:59 and 00:01, or in different timezones, returns the same people.
package search
