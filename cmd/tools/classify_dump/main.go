// classify_dump classifies a saved OpenDART fnlttSinglAcntAll response and
// prints every line's canonical key followed by the grouped account list.
//
//	go run ./cmd/tools/classify_dump -fs CFS samsung_2024.json
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"dart_accounts/pkg/core/catalog"
	"dart_accounts/pkg/core/classify"
	"dart_accounts/pkg/core/dart"
	"dart_accounts/pkg/core/grouping"
	"dart_accounts/pkg/models"
)

func main() {
	fsFlag := flag.String("fs", "CFS", "fs_div the response was requested with (CFS or OFS)")
	catalogPath := flag.String("catalog", "", "alternative catalog YAML")
	unmatched := flag.Bool("unmatched", false, "print only lines without a canonical key")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: classify_dump [-fs CFS|OFS] [-catalog file] [-unmatched] response.json")
	}

	fsDiv, err := models.ParseFsDiv(*fsFlag)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	cat := catalog.Default()
	if *catalogPath != "" {
		if cat, err = catalog.LoadFile(*catalogPath); err != nil {
			log.Fatalf("Error: %v", err)
		}
	}
	classifier := classify.New(cat)

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer f.Close()

	parsed, err := dart.ParseAccountList(f, fsDiv)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("=== %d lines (%d rows of other statements skipped) ===\n", len(parsed.Items), parsed.Skipped)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SJ\tACCOUNT_ID\tACCOUNT_NM\tCANON_KEY\tSCORE")
	matched := 0
	for _, li := range parsed.Items {
		res, ok := classifier.Classify(li.SjDiv, models.Deref(li.AccountID), models.Deref(li.AccountNm))
		if ok {
			matched++
			if *unmatched {
				continue
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", li.SjDiv, models.Deref(li.AccountID), models.Deref(li.AccountNm), res.Key, res.Score)
	}
	tw.Flush()
	fmt.Printf("\nmatched %d/%d\n", matched, len(parsed.Items))

	for _, st := range []models.StatementType{models.BalanceSheet, models.ComprehensiveIncome} {
		groups := grouping.ListAccounts(models.Scope{SjDiv: st}, parsed.Items)
		fmt.Printf("\n=== %s accounts (%d) ===\n", st, len(groups))
		for _, g := range groups {
			fmt.Printf("  %s\n", g.Key)
		}
	}
}
