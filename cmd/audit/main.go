// Command audit replays a round journal and prints one line per round:
// sequence, pool, digest and clearing bounds. Two nodes that built the
// same rounds print identical output.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"poolbook/codec"
	"poolbook/service"
)

func main() {
	dir := flag.String("journal", "./data/journal", "journal directory")
	flag.Parse()

	last, err := service.ReplayJournal(*dir, func(r *codec.Round) error {
		if r.Aborted() {
			fmt.Printf("%d\t%s\tABORTED\t%s\n", r.Seq, r.Pool, r.Abort)
			return nil
		}
		lo, hi := r.Book.ClearingBounds()
		fmt.Printf("%d\t%s\t%s\t[%s, %s]\t%d bids\t%d asks\n",
			r.Seq, r.Pool, codec.DigestOf(r.Book), lo, hi, len(r.Book.Bids()), len(r.Book.Asks()))
		return nil
	})
	if err != nil {
		slog.Error("AUDIT: replay failed", "last_seq", last, "error", err)
		os.Exit(1)
	}
}
