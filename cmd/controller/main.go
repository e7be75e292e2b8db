package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goburrow/modbus"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tarm/serial"
	"go.uber.org/zap"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/edgarvilca/riego/internal/actuators"
	"github.com/edgarvilca/riego/internal/api"
	"github.com/edgarvilca/riego/internal/config"
	"github.com/edgarvilca/riego/internal/controller"
	"github.com/edgarvilca/riego/internal/dashboard"
	"github.com/edgarvilca/riego/internal/decision"
	"github.com/edgarvilca/riego/internal/metrics"
	"github.com/edgarvilca/riego/internal/model"
	"github.com/edgarvilca/riego/internal/sensors"
	"github.com/edgarvilca/riego/internal/telemetry"
	"github.com/edgarvilca/riego/pkg/logging"
	"github.com/edgarvilca/riego/pkg/mqttx"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML configuration")
	flag.Parse()

	logger, err := logging.New()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	zlog := logger.Sugar()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatalw("configuration failed", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatalw("controller exited", "err", err)
	}
	zlog.Info("controller stopped")
}

func run(ctx context.Context, cfg config.Config, zlog *zap.SugaredLogger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(reg)

	client, err := mqttx.Connect(ctx, mqttx.Config{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: cfg.MQTT.ClientID,
	}, zlog)
	if err != nil {
		return err
	}

	influx := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
	defer influx.Close()
	writer := influx.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket)
	syncer := telemetry.NewSyncer(writer, cfg.Influx.SyncInterval.Std(), cfg.Influx.BatchSize, met, zlog)

	loc := time.Local
	if cfg.Weather.Timezone != "" {
		l, err := time.LoadLocation(cfg.Weather.Timezone)
		if err != nil {
			return fmt.Errorf("timezone %q: %w", cfg.Weather.Timezone, err)
		}
		loc = l
	}
	var wc decision.WeatherClient
	if cfg.Weather.APIKey != "" {
		wc = decision.NewOWMClient(cfg.Weather.APIKey, cfg.Weather.Lat, cfg.Weather.Lon)
	}
	budget := decision.NewBudget(cfg.Budget.BaseMM, cfg.Budget.ETOCoeff, wc, loc, zlog)
	engine := decision.NewEngine(cfg.Thresholds, budget, cfg.Control.CycleDoseMM, zlog)
	puller := telemetry.NewModelPuller(cfg.Model.RegistryURL, cfg.Model.PullInterval.Std(), engine, zlog)

	var bank *actuators.Bank
	var soil controller.SoilReader
	var level controller.LevelReader
	var flow *sensors.FlowSensor

	if cfg.Simulate {
		zlog.Info("running against simulated hardware")
		switches := map[model.Device]actuators.Switch{}
		for _, dev := range model.Devices {
			switches[dev] = actuators.NewSimSwitch()
		}
		bank, err = actuators.NewBank(switches, cfg.Control.DryRunFloorPct, zlog)
		if err != nil {
			return err
		}
		soil = sensors.NewSimSoil(time.Now().UnixNano())
		level = sensors.NewSimLevel(79, bank.PumpOn)
		flowing := func() bool { return bank.PumpOn() && bank.IrrigationOpen() }
		flow = sensors.NewFlowSensor(sensors.NewSimPulses(5.5, flowing), 5.5)
	} else {
		bank, soil, level, flow, err = buildHardware(cfg, zlog)
		if err != nil {
			return err
		}
	}

	ctrl := controller.New(controller.Config{
		Interval:     cfg.Control.Interval.Std(),
		ErrorPause:   cfg.Control.ErrorPause.Std(),
		ExpectedFlow: cfg.Control.ExpectedFlowLPM,
	}, soil, level, flow, engine, bank, budget, syncer, nil, met, zlog)

	bridge := dashboard.NewBridge(client, ctrl, zlog)
	ctrl.SetSink(bridge)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(ctrl, syncer, client, zlog).Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			zlog.Debugw("goroutine finished", "name", name)
		}()
	}
	start("syncer", syncer.Run)
	start("model-puller", puller.Run)
	start("dashboard", bridge.Run)
	start("control-loop", ctrl.Run)

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zlog.Warnw("http shutdown", "err", err)
		}
	}()

	zlog.Infow("http server listening", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	wg.Wait()
	return nil
}

// buildHardware opens the real buses and wires the device drivers.
func buildHardware(cfg config.Config, zlog *zap.SugaredLogger) (*actuators.Bank, controller.SoilReader, controller.LevelReader, *sensors.FlowSensor, error) {
	hw := cfg.Hardware

	adaptor := raspi.NewAdaptor()
	if err := adaptor.Connect(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("gpio adaptor: %w", err)
	}

	switches := map[model.Device]actuators.Switch{
		model.DevicePump:       actuators.NewRelaySwitch(adaptor, hw.PumpPin),
		model.DeviceIrrigation: actuators.NewRelaySwitch(adaptor, hw.IrrigationPin),
		model.DeviceSupply:     actuators.NewRelaySwitch(adaptor, hw.SupplyPin),
		model.DeviceFertilizer: actuators.NewRelaySwitch(adaptor, hw.FertilizerPin),
	}
	bank, err := actuators.NewBank(switches, cfg.Control.DryRunFloorPct, zlog)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	handler := modbus.NewRTUClientHandler(hw.SoilPort)
	handler.BaudRate = hw.SoilBaud
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.SlaveId = hw.SoilSlaveID
	handler.Timeout = 2 * time.Second
	if err := handler.Connect(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("soil probe bus %s: %w", hw.SoilPort, err)
	}
	soil := sensors.NewSoilProbe(modbus.NewClient(handler))

	port, err := serial.OpenPort(&serial.Config{
		Name:        hw.LevelPort,
		Baud:        hw.LevelBaud,
		ReadTimeout: time.Second,
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("level sensor port %s: %w", hw.LevelPort, err)
	}
	level := sensors.NewLevelSensor(port, hw.TankHeightCM, 5)

	pulses, err := sensors.NewGPIOPulseCounter(adaptor, hw.FlowPin)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	flow := sensors.NewFlowSensor(pulses, 5.5)

	zlog.Infow("hardware initialised",
		"soil_port", hw.SoilPort, "level_port", hw.LevelPort, "flow_pin", hw.FlowPin)
	return bank, soil, level, flow, nil
}
