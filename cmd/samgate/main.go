// Package main is the entry point for samgate, a local emulator for
// SAM/CloudFormation API Gateway templates.
package main

func main() {
	Execute()
}
