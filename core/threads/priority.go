package threads

// niceFor maps MinPriority..MaxPriority onto nice 8..-10, NormPriority to 0.
func niceFor(priority int) int {
	return (NormPriority - priority) * 2
}
