package require

import "github.com/kjk/entitystore/assert"

// same functions as in assert package but they stop the test
// on failure (t.FailNow())

// TestingT is an interface wrapper around *testing.T
type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
}

type tHelper interface {
	Helper()
}

func helper(t TestingT) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
}

// Len asserts that the specified object has specific length.
//
//	require.Len(t, mySlice, 3)
func Len(t TestingT, object interface{}, length int, msgAndArgs ...interface{}) {
	helper(t)
	if assert.Len(t, object, length, msgAndArgs...) {
		return
	}
	t.FailNow()
}

func Nil(t TestingT, object interface{}, msgAndArgs ...interface{}) {
	helper(t)
	if assert.Nil(t, object, msgAndArgs...) {
		return
	}
	t.FailNow()
}

func NotNil(t TestingT, object interface{}, msgAndArgs ...interface{}) {
	helper(t)
	if assert.NotNil(t, object, msgAndArgs...) {
		return
	}
	t.FailNow()
}

// NoError asserts that a function returned no error (i.e. `nil`).
//
//	v, err := store.GetByID(1)
//	require.NoError(t, err)
func NoError(t TestingT, err error, msgAndArgs ...interface{}) {
	helper(t)
	if assert.NoError(t, err, msgAndArgs...) {
		return
	}
	t.FailNow()
}

func Error(t TestingT, err error, msgAndArgs ...interface{}) {
	helper(t)
	if assert.Error(t, err, msgAndArgs...) {
		return
	}
	t.FailNow()
}

// ErrorIs is errors.Is() that stops the test on failure
func ErrorIs(t TestingT, err error, target error, msgAndArgs ...interface{}) {
	helper(t)
	if assert.ErrorIs(t, err, target, msgAndArgs...) {
		return
	}
	t.FailNow()
}

// ErrorAs is errors.As() that stops the test on failure
//
//	var nf *keyedstore.NotFoundError
//	require.ErrorAs(t, err, &nf)
func ErrorAs(t TestingT, err error, target interface{}, msgAndArgs ...interface{}) {
	helper(t)
	if assert.ErrorAs(t, err, target, msgAndArgs...) {
		return
	}
	t.FailNow()
}

func Empty(t TestingT, object interface{}, msgAndArgs ...interface{}) {
	helper(t)
	if assert.Empty(t, object, msgAndArgs...) {
		return
	}
	t.FailNow()
}

func NotEmpty(t TestingT, object interface{}, msgAndArgs ...interface{}) {
	helper(t)
	if assert.NotEmpty(t, object, msgAndArgs...) {
		return
	}
	t.FailNow()
}

// Equal asserts that two objects are equal.
//
// Pointer variable equality is determined based on the equality of the
// referenced values (as opposed to the memory addresses).
func Equal(t TestingT, expected interface{}, actual interface{}, msgAndArgs ...interface{}) {
	helper(t)
	if assert.Equal(t, expected, actual, msgAndArgs...) {
		return
	}
	t.FailNow()
}

func NotEqual(t TestingT, expected interface{}, actual interface{}, msgAndArgs ...interface{}) {
	helper(t)
	if assert.NotEqual(t, expected, actual, msgAndArgs...) {
		return
	}
	t.FailNow()
}

func True(t TestingT, value bool, msgAndArgs ...interface{}) {
	helper(t)
	if assert.True(t, value, msgAndArgs...) {
		return
	}
	t.FailNow()
}

func False(t TestingT, value bool, msgAndArgs ...interface{}) {
	helper(t)
	if assert.False(t, value, msgAndArgs...) {
		return
	}
	t.FailNow()
}

func FileExists(t TestingT, path string, msgAndArgs ...interface{}) {
	helper(t)
	if assert.FileExists(t, path, msgAndArgs...) {
		return
	}
	t.FailNow()
}

func NoFileExists(t TestingT, path string, msgAndArgs ...interface{}) {
	helper(t)
	if assert.NoFileExists(t, path, msgAndArgs...) {
		return
	}
	t.FailNow()
}
