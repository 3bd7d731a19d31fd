package config

const (
	defaultConfigPath           = "~/.config/checkweigher/config.toml"
	defaultLogDir               = "~/.local/share/checkweigher/logs"
	defaultStateDir             = "~/.local/state/checkweigher"
	defaultInfeedPosition       = 45
	defaultScanPosition         = 274
	defaultWeighPosition        = 475
	defaultDisposalBound        = 950
	defaultExitDelayTicks       = 50
	defaultTickRate             = 60
	defaultSpeed                = 1.0
	defaultSpeedScale           = 1.0
	defaultThroughputKgPerHour  = 30000
	defaultSensorAccuracy       = 0.005
	defaultBaggingAccuracy      = 0.015
	defaultFinalTolerance       = 0.005
	defaultSwapPollIntervalMS   = 250
	defaultSwapTimeoutSeconds   = 30
	defaultFeedCapacity         = 9
	defaultFeedLifespanSeconds  = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultSimulationTicks      = 3600
	largeThroughputMultiplier   = 10
	defaultSmallProfile         = "small"
	defaultLargeProfile         = "large"
	defaultSmallShape           = "small_bag"
	defaultLargeShape           = "sack"
	defaultSmallTolerance       = 0.03
	defaultSmallRangeMin        = 25.000
	defaultSmallRangeMax        = 25.110
	defaultLargeRangeMin        = 753.5
	defaultLargeRangeMax        = 754.0
	defaultSmallQuantityTonnes  = 388.79
	defaultLargeQuantityTonnes  = 388.79
	defaultSmallOrderSilo       = "91T060A"
	defaultLargeOrderSilo       = "91T061A"
	defaultSmallOrderLot        = "0260104002"
	defaultLargeOrderLot        = "7251104032"
	defaultOrderProductType     = "1126NK"
	defaultOrderGrade           = "PREMIUM"
	defaultMachineAName         = "A"
	defaultMachineBName         = "B"
	defaultMachineBInitialSpeed = 1.0
)

func f64(v float64) *float64 { return &v }

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Line: Line{
			InfeedPosition: defaultInfeedPosition,
			ScanPosition:   defaultScanPosition,
			WeighPosition:  defaultWeighPosition,
			DisposalBound:  defaultDisposalBound,
			ExitDelayTicks: defaultExitDelayTicks,
			TickRate:       defaultTickRate,
			DefaultSpeed:   defaultSpeed,
			SpeedScale:     defaultSpeedScale,
		},
		Throughput: Throughput{KgPerHour: defaultThroughputKgPerHour},
		Accuracy: Accuracy{
			Sensor:  defaultSensorAccuracy,
			Bagging: defaultBaggingAccuracy,
			Final:   defaultFinalTolerance,
		},
		SafeSwap: SafeSwap{
			PollIntervalMillis: defaultSwapPollIntervalMS,
			TimeoutSeconds:     defaultSwapTimeoutSeconds,
		},
		Feed: Feed{
			Capacity:        defaultFeedCapacity,
			LifespanSeconds: defaultFeedLifespanSeconds,
		},
		Profiles: map[string]ProfileConfig{
			defaultSmallProfile: {
				Shape:            defaultSmallShape,
				BaseWeight:       f64(25),
				ContainerWeight:  f64(0.01),
				Giveaway:         f64(0.02),
				BaggingTolerance: f64(defaultSmallTolerance),
				RangeMin:         f64(defaultSmallRangeMin),
				RangeMax:         f64(defaultSmallRangeMax),
			},
			defaultLargeProfile: {
				Shape:                defaultLargeShape,
				BaseWeight:           f64(750),
				ContainerWeight:      f64(3.5),
				Giveaway:             f64(0.5),
				RangeMin:             f64(defaultLargeRangeMin),
				RangeMax:             f64(defaultLargeRangeMax),
				ThroughputMultiplier: f64(largeThroughputMultiplier),
			},
		},
		Orders: map[string]Order{
			defaultSmallProfile: {
				Silo:           defaultSmallOrderSilo,
				Lines:          []string{defaultMachineAName, defaultMachineBName},
				Lot:            defaultSmallOrderLot,
				ProductType:    defaultOrderProductType,
				Grade:          defaultOrderGrade,
				QuantityTonnes: defaultSmallQuantityTonnes,
				PackageKg:      25,
			},
			defaultLargeProfile: {
				Silo:           defaultLargeOrderSilo,
				Lines:          []string{defaultMachineAName},
				Lot:            defaultLargeOrderLot,
				ProductType:    defaultOrderProductType,
				Grade:          defaultOrderGrade,
				QuantityTonnes: defaultLargeQuantityTonnes,
				PackageKg:      750,
			},
		},
		Machines: []Machine{
			{Name: defaultMachineAName, Profile: defaultSmallProfile, Speed: defaultSpeed},
			{Name: defaultMachineBName, Profile: defaultLargeProfile, Speed: defaultMachineBInitialSpeed},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Simulation: Simulation{
			Ticks: defaultSimulationTicks,
		},
	}
}
