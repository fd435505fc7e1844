package main

import (
	"fmt"
	"log"

	"github.com/pengfzhou/boltzmann"
	"gorgonia.org/tensor"
)

const side = 4

// bars builds a binary dataset of single vertical and horizontal bars on a
// side×side grid, flattened column major to side² features per sample.
func bars(n int) *tensor.Dense {
	nFeat := side * side
	backing := make([]float32, nFeat*n)
	X := tensor.New(tensor.WithShape(nFeat, n), tensor.WithBacking(backing))
	for j := 0; j < n; j++ {
		p := j % (2 * side)
		for k := 0; k < side; k++ {
			var feat int
			if p < side {
				feat = p*side + k // horizontal bar
			} else {
				feat = k*side + (p - side) // vertical bar
			}
			backing[feat*n+j] = 1
		}
	}
	return X
}

func train(name string, conf boltzmann.Config, X *tensor.Dense) *boltzmann.RBM {
	rbm := boltzmann.NewRBM(side*side, 8, boltzmann.WithSeed(1337))
	mon, err := boltzmann.Fit(rbm, X, conf)
	if err != nil {
		log.Fatalf("%s: %+v", name, err)
	}
	if last, ok := mon.Last(); ok {
		fmt.Printf("%s: pseudo likelihood %.4f after %d epochs\n", name, last.Score, last.Epoch)
	}
	if err := mon.Dump(name + ".csv"); err != nil {
		log.Fatalf("%s: %v", name, err)
	}
	return rbm
}

func main() {
	X := bars(240)

	conf := boltzmann.DefaultConfig()
	conf.LearnRate = 0.1
	conf.BatchSize = 20
	conf.Epochs = 15
	conf.Persist = true
	conf.PersistStart = 5
	conf.Silent = true

	cd := train("cd", conf, X)
	if err := cd.Save("cd.model"); err != nil {
		log.Fatal(err)
	}

	tapConf := conf
	tapConf.Approx = boltzmann.Tap2
	tapConf.ApproxIters = 3
	train("tap2", tapConf, X)

	// stack two layers on top of the raw data
	dbm, err := boltzmann.NewDBM([]int{side * side, 8, 4}, boltzmann.WithSeed(7))
	if err != nil {
		log.Fatal(err)
	}
	if _, err := dbm.Fit(X, conf); err != nil {
		log.Fatalf("%+v", err)
	}
	top, err := dbm.Transform(X)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	fmt.Printf("dbm: top layer representation %v\n", top.Shape())
}
