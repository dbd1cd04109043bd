// Command tablegate serves tables of a legacy store over HTTP and inspects
// its catalog from the terminal.
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/koustreak/tablegate/internal/database/mysql"
	_ "github.com/koustreak/tablegate/internal/database/openedge"
	_ "github.com/koustreak/tablegate/internal/database/postgres"
	_ "github.com/koustreak/tablegate/internal/database/sqlite"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
