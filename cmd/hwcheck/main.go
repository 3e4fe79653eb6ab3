package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	appcfg "github.com/paga2004/robochess/internal/config"
	"github.com/paga2004/robochess/internal/gpio"
	"github.com/paga2004/robochess/internal/obslog"
	"github.com/paga2004/robochess/internal/statusapi"
	"github.com/paga2004/robochess/internal/stepper"
)

const (
	testSteps    = 200
	servoPause   = 3 * time.Second
	switchWindow = 30 * time.Second
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	if addr := cfg.StatusAddr; addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := statusapi.NewClient("http://" + localAddr(addr)).Healthy(ctx)
		cancel()
		if err == nil {
			log.Fatalf("controller is running on %s; stop it before testing the hardware", addr)
		}
	}

	chip, err := gpio.Open()
	if err != nil {
		log.Fatalf("gpio: %v", err)
	}
	defer chip.Close()

	// Claim every output first so no driver input floats while the others are set up.
	p := cfg.Pins
	m1Step, m1Dir := chip.Output(p.Motor1Step), chip.Output(p.Motor1Dir)
	m2Step, m2Dir := chip.Output(p.Motor2Step), chip.Output(p.Motor2Dir)
	servo, err := chip.Servo(p.Servo, cfg.Motion.ServoFrame)
	if err != nil {
		log.Fatalf("servo: %v", err)
	}
	limits := []struct {
		name string
		in   gpio.Input
	}{
		{"limit1", chip.Input(p.Limit1)},
		{"limit2", chip.Input(p.Limit2)},
	}

	logger := obslog.L()
	for _, m := range []*stepper.Driver{
		stepper.New("motor1", m1Step, m1Dir, cfg.Motion.MinPeriod, logger),
		stepper.New("motor2", m2Step, m2Dir, cfg.Motion.MinPeriod, logger),
	} {
		for _, n := range []int{testSteps, -testSteps} {
			log.Printf("%s: %d steps", m.Name(), n)
			m.TurnSteps(cfg.Motion.SlowPeriod, n)
			m.Wait()
		}
	}

	mid := (cfg.Motion.ServoMinPulse + cfg.Motion.ServoMaxPulse) / 2
	for _, w := range []time.Duration{cfg.Motion.ServoMinPulse, mid, cfg.Motion.ServoMaxPulse} {
		log.Printf("servo: %s", w)
		if err := servo.SetPulse(w); err != nil {
			log.Fatalf("servo: %v", err)
		}
		time.Sleep(servoPause)
	}

	failed := false
	for _, l := range limits {
		fmt.Printf("press %s within %s\n", l.name, switchWindow)
		if waitActive(l.in, switchWindow) {
			log.Printf("%s: ok", l.name)
		} else {
			log.Printf("%s: no contact", l.name)
			failed = true
		}
	}
	if failed {
		_ = chip.Close()
		os.Exit(1)
	}
	log.Println("hardware check passed")
}

func waitActive(in gpio.Input, window time.Duration) bool {
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if in.Active() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// localAddr turns a listen address into one that can be dialled on this host.
func localAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
