package container

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// goid returns the current goroutine ID.
// This is used for tracking resolution chains in concurrent operations.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	idField := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseInt(idField, 10, 64)
	return id
}

// resolutionChains tracks, per goroutine, the beans currently under construction.
// A goroutine re-entering a bean it is already building gets a cycle error
// instead of blocking on its own singleton lock.
type resolutionChains struct {
	chains sync.Map // goroutine id -> *[]*BeanDefinition
}

// enter pushes def on the calling goroutine's chain. The returned func pops it.
func (r *resolutionChains) enter(def *BeanDefinition) (func(), error) {
	id := goid()
	v, _ := r.chains.LoadOrStore(id, &[]*BeanDefinition{})
	chain := v.(*[]*BeanDefinition)

	for i, d := range *chain {
		if d == def {
			cycle := make([]string, 0, len(*chain)-i+1)
			for _, c := range (*chain)[i:] {
				cycle = append(cycle, c.name)
			}
			return nil, &CircularDependencyError{Cycle: append(cycle, def.name)}
		}
	}

	*chain = append(*chain, def)
	return func() {
		*chain = (*chain)[:len(*chain)-1]
		if len(*chain) == 0 {
			r.chains.Delete(id)
		}
	}, nil
}
