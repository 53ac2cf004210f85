package library

import "errors"

var (
	// ErrPlanNotFound — план с таким именем не зарегистрирован.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrBuiltinPlan — встроенный план нельзя удалить или заменить файлом.
	ErrBuiltinPlan = errors.New("builtin plan")
)
