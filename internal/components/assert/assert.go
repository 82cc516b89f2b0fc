package assert

// NotNil panics when value is a nil interface. It guards constructor arguments that are wired once at
// startup.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}
