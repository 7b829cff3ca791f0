// Command carbonwise measures workloads and analyses their energy and
// emissions log.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
