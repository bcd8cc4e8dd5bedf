package assessment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/neurorisk/internal/assessment"
)

func fillParkinson(t *testing.T, f *assessment.Form) {
	t.Helper()
	for key, raw := range map[string]string{
		"caudateR": "5", "caudateL": "5", "putamenR": "5", "putamenL": "5",
		"updrs": "20", "smell": "20", "cognitive": "1",
	} {
		_, err := f.Change(key, raw)
		require.NoError(t, err)
	}
}

func TestForm_StartsEmpty(t *testing.T) {
	f := assessment.NewForm(mustTest(t, "parkinson"), newEngine(&fakeScorer{}, nil))

	st := f.State()
	assert.Equal(t, "parkinson", st.Test)
	assert.Len(t, st.Fields, 7)
	for key, fs := range st.Fields {
		assert.Empty(t, fs.Value, key)
	}
	assert.Nil(t, st.Result)
	assert.False(t, st.Loading)
}

func TestForm_ChangeSanitizesAndWarns(t *testing.T) {
	f := assessment.NewForm(mustTest(t, "parkinson"), newEngine(&fakeScorer{}, nil))

	fb, err := f.Change("caudateR", "5a")
	require.NoError(t, err)
	assert.Equal(t, "5", fb.Value)
	assert.True(t, fb.Malformed)
	assert.Equal(t, assessment.MalformedMessage, fb.Hint)

	fb, err = f.Change("caudateR", "5.7")
	require.NoError(t, err)
	assert.False(t, fb.Malformed)
	assert.Empty(t, fb.Hint)
	assert.Equal(t, "Value must be 0 to 5.5.", fb.Warning)
	assert.Equal(t, "5.7", f.State().Fields["caudateR"].Value, "live warning does not block typing")

	fb, err = f.Change("caudateR", "5.5")
	require.NoError(t, err)
	assert.Empty(t, fb.Warning)
	assert.Empty(t, f.State().Fields["caudateR"].Warning)

	_, err = f.Change("nope", "1")
	assert.ErrorIs(t, err, assessment.ErrUnknownField)
}

func TestForm_SubmitIncompleteBlocksRemoteCall(t *testing.T) {
	scorer := &fakeScorer{}
	f := assessment.NewForm(mustTest(t, "parkinson"), newEngine(scorer, nil))
	_, err := f.Change("updrs", "20")
	require.NoError(t, err)

	ra, err := f.Submit(context.Background())
	assert.Nil(t, ra)
	assert.ErrorIs(t, err, assessment.ErrIncomplete)
	assert.Zero(t, scorer.callCount())

	st := f.State()
	assert.Equal(t, assessment.IncompleteMessage, st.Error)
	assert.Equal(t, assessment.RequiredMessage, st.Fields["caudateR"].Error)
	assert.Empty(t, st.Fields["updrs"].Error)
	assert.Equal(t, "20", st.Fields["updrs"].Value, "input kept for retry")

	_, err = f.Change("caudateR", "1")
	require.NoError(t, err)
	assert.Empty(t, f.State().Fields["caudateR"].Error, "editing clears the field error")
}

func TestForm_SubmitOutOfRange(t *testing.T) {
	scorer := &fakeScorer{}
	f := assessment.NewForm(mustTest(t, "parkinson"), newEngine(scorer, nil))
	fillParkinson(t, f)
	_, err := f.Change("cognitive", "3")
	require.NoError(t, err)

	_, err = f.Submit(context.Background())
	assert.ErrorIs(t, err, assessment.ErrOutOfRange)
	assert.Zero(t, scorer.callCount())
	assert.Equal(t, "Enter a value between 0 and 1", f.State().Fields["cognitive"].Error)
}

func TestForm_SubmitFallbackKeepsInputAndSurfacesError(t *testing.T) {
	f := assessment.NewForm(mustTest(t, "parkinson"), newEngine(&fakeScorer{err: errors.New("timeout")}, nil))
	fillParkinson(t, f)

	ra, err := f.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, assessment.SourceFallback, ra.Source)

	st := f.State()
	assert.Equal(t, ra, st.Result)
	assert.Equal(t, assessment.PredictionFailedMessage, st.Error)
	assert.Equal(t, "20", st.Fields["smell"].Value)
}

func TestForm_SecondSubmitWhileInFlightIsNoop(t *testing.T) {
	scorer := &fakeScorer{
		pred:    assessment.Prediction{RiskPercentage: 30, Confidence: 0.7},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := assessment.NewForm(mustTest(t, "parkinson"), newEngine(scorer, nil))
	fillParkinson(t, f)

	type outcome struct {
		ra  *assessment.RiskAssessment
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		ra, err := f.Submit(context.Background())
		done <- outcome{ra, err}
	}()

	select {
	case <-scorer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first submit never reached the scorer")
	}
	assert.True(t, f.State().Loading)

	ra, err := f.Submit(context.Background())
	assert.Nil(t, ra)
	assert.ErrorIs(t, err, assessment.ErrSubmitInFlight)

	// Other fields stay editable while loading.
	_, err = f.Change("smell", "21")
	require.NoError(t, err)

	close(scorer.release)
	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, assessment.RiskLow, got.ra.RiskLevel)
	assert.Equal(t, 1, scorer.callCount())
	assert.False(t, f.State().Loading)
}

func TestForm_CloseMidRequestDiscardsResult(t *testing.T) {
	scorer := &fakeScorer{
		pred:    assessment.Prediction{RiskPercentage: 80, Confidence: 0.9},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	engine := newEngine(scorer, nil)
	pd := mustTest(t, "parkinson")
	f := assessment.NewForm(pd, engine)
	fillParkinson(t, f)

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background())
		done <- err
	}()
	<-scorer.started

	f.Close()
	close(scorer.release)
	assert.ErrorIs(t, <-done, assessment.ErrFormClosed)
	assert.Nil(t, f.State().Result)

	_, err := f.Change("updrs", "1")
	assert.ErrorIs(t, err, assessment.ErrFormClosed)

	remounted := assessment.NewForm(pd, engine)
	for key, fs := range remounted.State().Fields {
		assert.Empty(t, fs.Value, key)
	}
}

func TestForm_ResetMidRequestDropsStaleResult(t *testing.T) {
	scorer := &fakeScorer{
		pred:    assessment.Prediction{RiskPercentage: 80, Confidence: 0.9},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := assessment.NewForm(mustTest(t, "parkinson"), newEngine(scorer, nil))
	fillParkinson(t, f)

	type outcome struct {
		ra  *assessment.RiskAssessment
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		ra, err := f.Submit(context.Background())
		done <- outcome{ra, err}
	}()
	<-scorer.started

	f.Reset()
	close(scorer.release)
	got := <-done
	assert.Nil(t, got.ra, "stale result is not handed back")
	assert.ErrorIs(t, got.err, assessment.ErrFormReset)

	st := f.State()
	assert.Nil(t, st.Result)
	assert.Empty(t, st.Fields["caudateR"].Value)
}

func TestForm_AlzheimerFailureLeavesNoResult(t *testing.T) {
	ad := mustTest(t, "alzheimer")
	f := assessment.NewForm(ad, newEngine(&fakeScorer{err: errors.New("bad gateway")}, nil))
	for key, v := range midpoints(ad) {
		_, err := f.Change(key, format(v))
		require.NoError(t, err)
	}

	ra, err := f.Submit(context.Background())
	assert.Nil(t, ra)
	assert.ErrorIs(t, err, assessment.ErrPredictionUnavailable)

	st := f.State()
	assert.Nil(t, st.Result)
	assert.Equal(t, assessment.PredictionFailedMessage, st.Error)
	assert.Equal(t, "3.5", st.Fields["hippocampusVolume"].Value)
}
