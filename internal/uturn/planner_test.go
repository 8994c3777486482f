package uturn_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/agsteer/internal/boundary"
	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/guidance"
	"github.com/san-kum/agsteer/internal/track"
	"github.com/san-kum/agsteer/internal/uturn"
)

var _ = Describe("Planner", func() {
	var (
		cfg     uturn.Config
		field   boundary.Field
		ref     *track.Track
		vehicle guidance.Input
		planner *uturn.Planner
	)

	BeforeEach(func() {
		var err error
		cfg = uturn.DefaultConfig()
		field, err = boundary.NewRectField(geo.Vec2{}, 200, 400, 20)
		Expect(err).NotTo(HaveOccurred())
		ref = track.NewABLine("ref", geo.Vec2{Easting: 100}, geo.Vec2{Easting: 100, Northing: 400})
		vehicle = guidance.Input{
			Wheelbase:     2.5,
			MaxSteerAngle: 35,
			LookAhead:     4,
			Speed:         2,
			Params:        guidance.DefaultParams(),
			IMURoll:       guidance.RollUnavailable,
		}
	})

	JustBeforeEach(func() {
		var err error
		planner, err = uturn.NewPlanner(cfg)
		Expect(err).NotTo(HaveOccurred())
	})

	tick := func(pose geo.Vec3) uturn.Result {
		res, err := planner.Process(uturn.Input{
			Pivot:   pose,
			Track:   planner.CurrentTrack(ref),
			Field:   field,
			Vehicle: vehicle,
		})
		Expect(err).NotTo(HaveOccurred())
		return res
	}

	rowPose := func(sameWay bool) geo.Vec3 {
		x := planner.CurrentTrack(ref).Points[0].Easting
		if sameWay {
			return geo.Vec3{Easting: x, Northing: 100, Heading: 0}
		}
		return geo.Vec3{Easting: x, Northing: 300, Heading: math.Pi}
	}

	planTurn := func(sameWay bool) []geo.Vec3 {
		pose := rowPose(sameWay)
		var res uturn.Result
		for i := 0; i < cfg.DebounceTicks; i++ {
			res = tick(pose)
		}
		Expect(res.Status).To(Equal(uturn.StatusPathReady))
		Expect(len(res.Path)).To(BeNumerically(">", cfg.MinPathPoints))
		return res.Path
	}

	runTurn := func(sameWay bool) {
		path := planTurn(sameWay)
		res := tick(path[0])
		Expect(res.Status).To(Equal(uturn.StatusTriggered))
		res = tick(path[len(path)-1])
		Expect(res.Status).To(Equal(uturn.StatusCompleted))
	}

	Describe("headland distance", func() {
		It("measures along the row when aligned", func() {
			res := tick(geo.Vec3{Easting: 100, Northing: 100, Heading: geo.Radians(10)})
			Expect(res.Status).To(Equal(uturn.StatusApproaching))
			Expect(res.DistanceToHeadland).To(BeNumerically("~", 280, 1e-6))
		})

		It("measures backwards along the row when travelling against it", func() {
			res := tick(geo.Vec3{Easting: 100, Northing: 300, Heading: math.Pi})
			Expect(res.DistanceToHeadland).To(BeNumerically("~", 280, 1e-6))
		})

		It("is unknown when misaligned and plans nothing", func() {
			for i := 0; i < 10; i++ {
				res := tick(geo.Vec3{Easting: 100, Northing: 100, Heading: geo.Radians(60)})
				Expect(res.Status).To(Equal(uturn.StatusIdle))
				Expect(math.IsInf(res.DistanceToHeadland, 1)).To(BeTrue())
			}
			Expect(planner.State().Phase).To(Equal(uturn.Phase(uturn.Idle{})))
		})
	})

	Describe("debounce", func() {
		It("waits the configured number of ticks before building a path", func() {
			pose := rowPose(true)
			for i := 1; i < cfg.DebounceTicks; i++ {
				Expect(tick(pose).Status).To(Equal(uturn.StatusApproaching))
				Expect(planner.State().Phase).To(Equal(uturn.Phase(uturn.Approaching{Ticks: i})))
			}
			Expect(tick(pose).Status).To(Equal(uturn.StatusPathReady))
		})

		It("does not build a path inside the minimum creation distance", func() {
			pose := geo.Vec3{Easting: 100, Northing: 360, Heading: 0}
			for i := 0; i < 3*cfg.DebounceTicks; i++ {
				Expect(tick(pose).Status).To(Equal(uturn.StatusApproaching))
			}
			Expect(planner.State().Path).To(BeNil())
		})
	})

	Describe("execution", func() {
		It("steers along the path without completing straight after the trigger", func() {
			path := planTurn(true)
			res := tick(path[0])
			Expect(res.Status).To(Equal(uturn.StatusTriggered))
			Expect(res.Steer).NotTo(BeNil())

			res = tick(path[2])
			Expect(res.Status).To(Equal(uturn.StatusExecuting))
			Expect(math.Abs(res.Steer.SteerAngle)).To(BeNumerically("<=", vehicle.MaxSteerAngle))

			st := planner.State()
			Expect(st.Phase).To(Equal(uturn.Phase(uturn.Executing{StartedSameWay: true, TurnLeft: false})))
			Expect(st.NextPathsAway).To(Equal(1))
			Expect(st.PathsAway).To(Equal(0))
		})

		It("moves to the next row and alternates direction on completion", func() {
			runTurn(true)
			st := planner.State()
			Expect(st.PathsAway).To(Equal(1))
			Expect(st.Path).To(BeNil())
			Expect(st.NextTurnLeft).To(BeTrue())
			Expect(planner.CurrentTrack(ref).Points[0].Easting).To(BeNumerically("~", 106, 1e-9))

			runTurn(false)
			Expect(planner.PathsAway()).To(Equal(2))
		})

		It("keeps working the same side across a back and forth pass", func() {
			for i := 0; i < 6; i++ {
				runTurn(i%2 == 0)
			}
			Expect(planner.PathsAway()).To(Equal(6))
		})
	})

	Describe("row advance sign", func() {
		BeforeEach(func() {
			cfg.AlternateDirection = false
			cfg.RowSkip = 2
		})

		DescribeTable("after N turns",
			func(left, sameWay bool, perTurn int) {
				if planner.State().NextTurnLeft != left {
					planner.SwapDirection()
				}
				const n = 3
				for i := 0; i < n; i++ {
					runTurn(sameWay)
				}
				Expect(planner.PathsAway()).To(Equal(n * perTurn))
			},
			Entry("left, same way", true, true, -2),
			Entry("right, same way", false, true, 2),
			Entry("left, against the line", true, false, 2),
			Entry("right, against the line", false, false, -2),
		)
	})

	Describe("ready path policy", func() {
		misaligned := geo.Vec3{Easting: 100, Northing: 100, Heading: geo.Radians(70)}

		It("keeps the path through misalignment by default", func() {
			planTurn(true)
			Expect(tick(misaligned).Status).To(Equal(uturn.StatusPathReady))
			Expect(planner.State().Path).NotTo(BeNil())
		})

		Context("with InvalidateOnMisalign", func() {
			BeforeEach(func() { cfg.InvalidateOnMisalign = true })

			It("drops the path", func() {
				planTurn(true)
				Expect(tick(misaligned).Status).To(Equal(uturn.StatusIdle))
				Expect(planner.State().Path).To(BeNil())
			})
		})

		It("reports a missed turn when the vehicle drives past its start", func() {
			path := planTurn(true)
			past := geo.Vec3{Easting: path[0].Easting + 3, Northing: path[0].Northing + 5}
			Expect(tick(past).Status).To(Equal(uturn.StatusTurnMissed))
			Expect(planner.State().Path).To(BeNil())

			// too close to the headland to plan again
			past.Northing += 2
			Expect(tick(past).Status).To(Equal(uturn.StatusTurnMissed))
			Expect(planner.State().Phase).To(Equal(uturn.Phase(uturn.Approaching{Missed: true})))
		})

		It("plans again once far enough from the headland after a miss", func() {
			path := planTurn(true)
			Expect(tick(geo.Vec3{Easting: path[0].Easting + 3, Northing: path[0].Northing + 5}).Status).
				To(Equal(uturn.StatusTurnMissed))

			Expect(tick(rowPose(true)).Status).To(Equal(uturn.StatusApproaching))
			Expect(planner.State().Phase).To(Equal(uturn.Phase(uturn.Approaching{Ticks: 1})))
			planTurn(true)
		})

		It("rebuilds toward the other side after SwapDirection", func() {
			planTurn(true)
			planner.SwapDirection()
			Expect(planner.State().Path).To(BeNil())
			path := planTurn(true)
			Expect(path[len(path)-1].Easting).To(BeNumerically("~", 94, 1e-6))
		})
	})

	Describe("end of field", func() {
		BeforeEach(func() {
			cfg.ToolWidth = 30
			ref = track.NewABLine("edge", geo.Vec2{Easting: 175}, geo.Vec2{Easting: 175, Northing: 400})
		})

		It("reports end of field when the next row leaves the boundary", func() {
			pose := rowPose(true)
			var res uturn.Result
			for i := 0; i < cfg.DebounceTicks; i++ {
				res = tick(pose)
			}
			Expect(res.Status).To(Equal(uturn.StatusEndOfField))
			Expect(tick(pose).Status).To(Equal(uturn.StatusEndOfField))
			Expect(planner.State().EndOfField).To(BeTrue())

			planner.Reset()
			Expect(planner.State().EndOfField).To(BeFalse())
		})

		Context("when the next row lies in the headland band", func() {
			BeforeEach(func() {
				cfg.ToolWidth = 6
				ref = track.NewABLine("last", geo.Vec2{Easting: 178}, geo.Vec2{Easting: 178, Northing: 400})
			})

			It("stops instead of turning onto it", func() {
				pose := rowPose(true)
				var res uturn.Result
				for i := 0; i < cfg.DebounceTicks; i++ {
					res = tick(pose)
				}
				Expect(res.Status).To(Equal(uturn.StatusEndOfField))
				Expect(planner.State().Path).To(BeNil())
			})

			It("still turns away from the band", func() {
				planner.SwapDirection()
				planTurn(true)
			})
		})
	})

	Describe("fallback", func() {
		BeforeEach(func() {
			field.Headland = boundary.Ring{}
		})

		It("builds the simple path when no headland exists", func() {
			path := planTurn(true)
			Expect(planner.State().UsedFallback).To(BeTrue())
			Expect(path[0].Northing).To(BeNumerically("~", 100+300-cfg.EntryLength, 1e-6))
		})

		It("lays the path along the row despite heading error and drives it", func() {
			pose := geo.Vec3{Easting: 100.6, Northing: 100, Heading: geo.Radians(12)}
			var res uturn.Result
			for i := 0; i < cfg.DebounceTicks; i++ {
				res = tick(pose)
			}
			Expect(res.Status).To(Equal(uturn.StatusPathReady))
			Expect(planner.State().UsedFallback).To(BeTrue())

			path := res.Path
			first, last := path[0], path[len(path)-1]
			Expect(first.Easting).To(BeNumerically("~", 100, 1e-6))
			Expect(first.Northing).To(BeNumerically("~", 400-cfg.EntryLength, 1e-6))
			Expect(math.Abs(geo.AngleDiff(first.Heading, 0))).To(BeNumerically("<", 1e-9))
			Expect(last.Easting).To(BeNumerically("~", 106, 1e-6))

			// up the row, slightly off the line
			for n := 300.0; n < first.Northing-cfg.TriggerDistance; n += 5 {
				Expect(tick(geo.Vec3{Easting: 100.3, Northing: n}).Status).To(Equal(uturn.StatusPathReady))
			}
			Expect(tick(first).Status).To(Equal(uturn.StatusTriggered))
			for _, pt := range path[1 : len(path)-1] {
				if pt.XY().Dist(last.XY()) < cfg.CompleteDistance {
					break
				}
				Expect(tick(pt).Status).To(Equal(uturn.StatusExecuting))
			}
			Expect(tick(last).Status).To(Equal(uturn.StatusCompleted))
			Expect(planner.PathsAway()).To(Equal(1))
			Expect(planner.CurrentTrack(ref).Points[0].Easting).To(BeNumerically("~", 106, 1e-9))
		})
	})

	Describe("preconditions", func() {
		It("rejects a one-point track", func() {
			_, err := planner.Process(uturn.Input{
				Pivot:   geo.Vec3{},
				Track:   &track.Track{Points: []geo.Vec3{{}}},
				Field:   field,
				Vehicle: vehicle,
			})
			Expect(err).To(MatchError(guidance.ErrPreconditionViolation))
		})
	})
})

var _ = Describe("turn paths", func() {
	field, _ := boundary.NewRectField(geo.Vec2{}, 200, 400, 20)

	check := func(path []geo.Vec3, w float64, left bool) {
		first, last := path[0], path[len(path)-1]
		side := 1.0
		if left {
			side = -1
		}
		Expect(geo.SignedDistance(last.XY(), first.XY(), first.Heading)).To(BeNumerically("~", side*w, 1e-6))
		Expect(geo.AlongDistance(last.XY(), first.XY(), first.Heading)).To(BeNumerically("~", 0, 1e-6))
		Expect(math.Abs(geo.AngleDiff(last.Heading, first.Heading+math.Pi))).To(BeNumerically("<", 1e-9))
		for i := 1; i < len(path); i++ {
			Expect(path[i].XY().Dist(path[i-1].XY())).To(BeNumerically("<", 1))
		}
	}

	DescribeTable("boundary path end points",
		func(toolWidth float64, rowSkip int, radius float64, left bool) {
			cfg := uturn.DefaultConfig()
			cfg.ToolWidth = toolWidth
			cfg.RowSkip = rowSkip
			cfg.TurnRadius = radius
			path, err := cfg.BoundaryPath(field, geo.Vec2{Easting: 100, Northing: 100}, 0, left)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(path)).To(BeNumerically(">", 10))
			check(path, cfg.RowSpacing(), left)
			Expect(path[0].Northing).To(BeNumerically("~", 380-cfg.EntryLength, 1e-6))
		},
		Entry("semicircle", 6.0, 1, 3.0, false),
		Entry("two quarter arcs", 6.0, 2, 3.0, true),
		Entry("bulb", 6.0, 1, 5.0, false),
		Entry("bulb left", 4.0, 1, 6.0, true),
		Entry("minimum radius", 6.0, 1, 0.5, false),
	)

	DescribeTable("simple path end points",
		func(radius float64, heading float64, left bool) {
			cfg := uturn.DefaultConfig()
			cfg.TurnRadius = radius
			path, err := cfg.SimplePath(geo.Vec2{Easting: 50, Northing: 50}, heading, 40, left)
			Expect(err).NotTo(HaveOccurred())
			check(path, cfg.RowSpacing(), left)
		},
		Entry("east, right", 3.0, math.Pi/2, false),
		Entry("south-west, left", 8.0, geo.Radians(225), true),
		Entry("north, tight", 2.0, 0.0, true),
	)

	It("joins the legs at the further headland crossing", func() {
		slanted := boundary.Field{
			Outer: boundary.Rect(0, 0, 200, 400),
			Headland: boundary.NewRing([]geo.Vec2{
				{Easting: 20, Northing: 20}, {Easting: 180, Northing: 20},
				{Easting: 180, Northing: 390}, {Easting: 20, Northing: 370},
			}),
		}
		cfg := uturn.DefaultConfig()
		path, err := cfg.BoundaryPath(slanted, geo.Vec2{Easting: 100, Northing: 100}, 0, false)
		Expect(err).NotTo(HaveOccurred())
		// crossing at x=106 is further north than at x=100
		Expect(path[0].Northing).To(BeNumerically("~", 380.75-cfg.EntryLength, 1e-6))
	})

	It("reports an unusable headland", func() {
		cfg := uturn.DefaultConfig()
		_, err := cfg.BoundaryPath(boundary.Field{}, geo.Vec2{}, 0, false)
		Expect(err).To(MatchError(uturn.ErrBoundaryUnavailable))
	})

	It("discards paths with too few points", func() {
		cfg := uturn.DefaultConfig()
		cfg.MinPathPoints = 1000
		_, err := cfg.SimplePath(geo.Vec2{}, 0, 40, false)
		Expect(err).To(MatchError(uturn.ErrPathTooShort))
	})
})
