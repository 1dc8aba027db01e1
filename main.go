// smresolve resolves JavaScript source maps and the original sources they point to.
package main

import "github.com/liuxd6825/smresolve/cmd"

func main() {
	cmd.Execute()
}
