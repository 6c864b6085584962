// Package main is the entry point for the coreplane control plane server.
package main

func main() {
	Execute()
}
