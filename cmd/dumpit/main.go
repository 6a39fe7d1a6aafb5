package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/pkg/utility/logging"
)

// dumpit converts csv quote exports (timestamp,bid,ask,bid_volume,ask_volume
// with a header row) into the binary layout read by the historical data
// source. Input files are appended in argument order.
func main() {
	out := flag.String("out", "", "binary output file")
	flag.Parse()

	logger := logging.NewProdLogger()
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	if *out == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: dumpit -out SYMBOL.bin FILE.csv...")
		os.Exit(2)
	}

	if err := dumpAll(logger, *out, flag.Args()); err != nil {
		logger.Error("failed to dump", zap.Error(err))
		_ = os.Remove(*out)
		os.Exit(1)
	}
	logger.Info("done", zap.String("out", *out))
}

func dumpAll(logger *zap.Logger, out string, inputs []string) error {
	binFile, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func(binFile *os.File) {
		_ = binFile.Close()
	}(binFile)

	w := bufio.NewWriter(binFile)
	c := &converter{}
	for _, input := range inputs {
		n, err := dumpFile(c, input, w)
		if err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		logger.Info("dump finished", zap.String("file", input), zap.Int("quotes", n))
	}
	return w.Flush()
}

func dumpFile(c *converter, path string, w *bufio.Writer) (int, error) {
	csvFile, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func(csvFile *os.File) {
		_ = csvFile.Close()
	}(csvFile)

	return c.convert(csvFile, w)
}
