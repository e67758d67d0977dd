package core

import (
	"reflect"
	"testing"
)

func resetScheduler() {
	timerList = nil
	SetTime(0)
}

func TestSchedulerOrder(t *testing.T) {
	resetScheduler()
	var fired []string
	mk := func(name string, wake uint32) *Timer {
		return &Timer{WakeTime: wake, Handler: func(*Timer) uint8 {
			fired = append(fired, name)
			return SF_DONE
		}}
	}

	ScheduleTimer(mk("c", 300))
	ScheduleTimer(mk("a", 100))
	ScheduleTimer(mk("b", 200))
	ScheduleTimer(mk("b2", 200))

	SetTime(150)
	ProcessTimers()
	SetTime(250)
	ProcessTimers()

	if want := []string{"a", "b", "b2"}; !reflect.DeepEqual(fired, want) {
		t.Errorf("fired %v, want %v", fired, want)
	}

	SetTime(1000)
	ProcessTimers()
	if len(fired) != 4 || timerList != nil {
		t.Errorf("fired %v, pending list %v", fired, timerList)
	}
}

func TestSchedulerReschedule(t *testing.T) {
	resetScheduler()
	count := 0
	timer := &Timer{WakeTime: TimerFromMS(10), Handler: func(tm *Timer) uint8 {
		count++
		tm.WakeTime += TimerFromMS(10)
		return SF_RESCHEDULE
	}}
	ScheduleTimer(timer)

	for ms := uint32(1); ms <= 55; ms++ {
		SetTime(TimerFromMS(ms))
		ProcessTimers()
	}
	if count != 5 {
		t.Errorf("periodic timer fired %d times in 55ms, want 5", count)
	}
}

func TestCancelTimer(t *testing.T) {
	resetScheduler()
	fired := false
	a := &Timer{WakeTime: 10, Handler: func(*Timer) uint8 { fired = true; return SF_DONE }}
	b := &Timer{WakeTime: 20, Handler: func(*Timer) uint8 { return SF_DONE }}
	ScheduleTimer(a)
	ScheduleTimer(b)

	CancelTimer(a)
	CancelTimer(a) // not pending any more

	SetTime(100)
	ProcessTimers()
	if fired {
		t.Error("cancelled timer fired")
	}
	if timerList != nil {
		t.Error("timer list not drained")
	}
}

func TestTimerConversions(t *testing.T) {
	if TimerFromUS(250) != 250 || TimerFromMS(750) != 750000 || TimerToUS(1500) != 1500 {
		t.Error("1 MHz timer conversions are off")
	}
}
