// Command spsync keeps local cave survey projects in sync with a
// SpeleoDB instance.
package main

import (
	"github.com/speleokit/speleosync/internal/cli"
)

func main() {
	cli.Execute()
}
