// Package logx is a thin structured-logging layer over zerolog.
//
// It exposes a value-type Logger that stays live across Service.Apply()
// reconfiguration, so components can hold a Logger while the operator
// changes level or sinks at runtime.
package logx
