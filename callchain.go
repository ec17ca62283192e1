package esmap

type callchained struct {
	fn   func(*QueryBuilder, FeatureFunc) (*Result, error)
	next *callchained
}

func (cc *callchained) add(f Feature) *callchained {
	return &callchained{
		f.Process,
		cc,
	}
}

// callchain nests features so the first one added is the outermost.
type callchain struct {
	root *callchained
}

func (cc *callchain) add(f Feature) {
	if cc.root == nil {
		cc.root = &callchained{}
	}

	cc.root = cc.root.add(f)
}

func (cc *callchain) exec(qb *QueryBuilder, fn FeatureFunc) (*Result, error) {
	for n := cc.root; n != nil && n.fn != nil; n = n.next {
		fn = func(ff FeatureFunc, c *callchained) FeatureFunc {
			return func(qb *QueryBuilder) (*Result, error) {
				return c.fn(qb, ff)
			}
		}(fn, n)
	}

	return fn(qb)
}
