/*
This example follows the leaf blotch analysis in McCullagh and
Nelder's GLM book.

The data are proportions between 0 and 1, arranged in a complete two-way
layout of 10 sites by 9 varieties.  The mean model is an additive
factorial model.  The parameters are fit using a binomial GLM with the
usual logit link function.  This is a quasi-likelihood analysis since
the data are not binary, so the binomial dispersion of 1 does not apply.
The dispersion is estimated from the Pearson residuals, and is much
smaller than 1.

Large Pearson residuals at small fitted means show that the binomial
variance function understates the variance there.

The analysis follows the SAS manual:

https://support.sas.com/documentation/cdl/en/statug/63033/HTML/default/viewer.htm#statug_glimmix_sect016.htm

Usage:

	go run main.go [-settings fit.yaml] [-json]
*/

package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/glmfamily/glm"
)

// Percent of leaf area affected, rows are sites and columns are
// varieties.
var raw = `0.05,0.00,1.25,2.50,5.50,1.00,5.00,5.00,17.50
0.00,0.05,1.25,0.50,1.00,5.00,0.10,10.00,25.00
0.00,0.05,2.50,0.01,6.00,5.00,5.00,5.00,42.50
0.10,0.30,16.60,3.00,1.10,5.00,5.00,5.00,50.00
0.25,0.75,2.50,2.50,2.50,5.00,50.00,25.00,37.50
0.05,0.30,2.50,0.01,8.00,5.00,10.00,75.00,95.00
0.50,3.00,0.00,25.00,16.50,10.00,50.00,50.00,62.50
1.30,7.50,20.00,55.00,29.50,5.00,25.00,75.00,95.00
1.50,1.00,37.50,5.00,20.00,50.00,50.00,75.00,95.00
1.50,12.70,26.25,40.00,43.50,75.00,75.00,75.00,95.00`

// setup returns the design matrix for the additive model, with
// indicators for sites 2-10 and varieties 2-9, the response, and the
// covariate names.
func setup() (*mat.Dense, []float64, []string) {

	recs, err := csv.NewReader(strings.NewReader(raw)).ReadAll()
	if err != nil {
		log.Fatal(err)
	}

	nrow, ncol := len(recs), len(recs[0])
	p := nrow + ncol - 1

	names := []string{"icept"}
	for i := 1; i < nrow; i++ {
		names = append(names, fmt.Sprintf("site%d", i+1))
	}
	for j := 1; j < ncol; j++ {
		names = append(names, fmt.Sprintf("variety%d", j+1))
	}

	x := mat.NewDense(nrow*ncol, p, nil)
	var y []float64
	for i, rec := range recs {
		for j, v := range rec {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				log.Fatal(err)
			}
			k := len(y)
			y = append(y, f/100)
			x.Set(k, 0, 1)
			if i > 0 {
				x.Set(k, i, 1)
			}
			if j > 0 {
				x.Set(k, nrow-1+j, 1)
			}
		}
	}

	return x, y, names
}

func loadSettings(fname string) *glm.Settings {

	if fname == "" {
		return glm.DefaultSettings()
	}

	fid, err := os.Open(fname)
	if err != nil {
		log.Fatal(err)
	}
	defer fid.Close()

	s, err := glm.LoadSettings(fid)
	if err != nil {
		log.Fatal(err)
	}

	return s
}

func main() {

	settings := flag.String("settings", "", "YAML file with fitting settings")
	asJSON := flag.Bool("json", false, "write the results as JSON")
	verbose := flag.Bool("v", false, "log the progress of the fit")
	flag.Parse()

	x, y, names := setup()

	model := glm.NewGLM(x, y).Family(glm.NewFamily(glm.BinomialFamily)).Names(names).
		Dispersion(glm.DispersionFree, 0)
	model = model.Settings(loadSettings(*settings))
	if *verbose {
		model = model.Log(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	model, err := model.Done()
	if err != nil {
		log.Fatal(err)
	}

	result, err := model.Fit()
	if err != nil {
		log.Fatal(err)
	}

	if *asJSON {
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(append(b, '\n'))
		return
	}

	// The quasi-likelihood dispersion is around 0.09.
	fmt.Printf("%v\n", result.Summary())
	fmt.Printf("Estimated dispersion: %.4f\n\n", result.Dispersion())

	resid := result.PearsonResiduals()

	// Pearson residuals grouped by fitted mean
	mu := result.FittedValues()
	cuts := []float64{0, 0.01, 0.05, 0.2, 1}
	fmt.Printf("%-14s %6s %10s\n", "Fitted mean", "N", "Resid SD")
	for k := 0; k+1 < len(cuts); k++ {
		var n int
		var ss float64
		for i, m := range mu {
			if m >= cuts[k] && m < cuts[k+1] {
				n++
				ss += resid[i] * resid[i]
			}
		}
		if n == 0 {
			continue
		}
		fmt.Printf("[%.2f, %.2f)   %6d %10.4f\n", cuts[k], cuts[k+1], n, math.Sqrt(ss/float64(n)))
	}
}
