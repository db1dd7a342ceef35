package helpers

func Float64Pointer(f float64) *float64 {
	return &f
}

func IntPointer(i int) *int {
	return &i
}

func Int64Pointer(i int64) *int64 {
	return &i
}
