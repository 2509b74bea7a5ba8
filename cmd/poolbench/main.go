// Command poolbench benchmarks chunkpool against the Go allocator and runs a
// small demonstration of pool behaviour.
package main

func main() {
	execute()
}
