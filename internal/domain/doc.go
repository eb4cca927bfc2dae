// Package domain models rainfall depths, TP108 Annual Recurrence Interval (ARI)
// results, radar catchment coverage and telemetry alarm validation.
//
// # Rainfall Data
//
// Depths arrive either from rain gauges (one series per gauge) or from radar
// quantitative precipitation estimates (one series per radar pixel). Raw
// increments are accumulated into rolling totals for a fixed set of durations:
//
//	10m, 20m, 30m, 60m, 2h, 6h, 12h, 24h
//
// A total is only emitted once its whole window is populated, so the first
// timestamps of a series carry no value for the longer durations.
//
// # TP108 Coefficients
//
// Auckland Council Technical Publication 108 fits, per location and duration,
// a log-linear relationship between depth and recurrence interval:
//
//	ARI = exp(m * depth + b)
//
// m is positive and expressed per millimetre, so ARI increases with depth.
// A depth of zero yields exp(b). Results above the configured ceiling
// (1000 years by default) are clamped and flagged as out of range.
//
// # Catchments
//
// A catchment is a polygon mapped to the set of radar pixels that intersect it.
// The proportion of pixels exceeding an ARI threshold at a timestamp is
// computed over the pixels that actually reported data; when fewer than half of
// the members reported, the proportion is withheld rather than guessed.
//
// # Alarms
//
// Telemetry alarms are classified from their description text:
//
//	"Max TP108 ARI ..." or "Overflow ..." -> overflow
//	"Data Recency ..."                     -> recency
//	anything else                          -> unknown (never corroborated)
//
// Each alarm is judged against the ARI evidence inside a window around its
// creation time and receives one of SUPPORTED, NOT_SUPPORTED or UNVERIFIABLE,
// always with a reason.
package domain
