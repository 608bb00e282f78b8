package hho

import (
	"fmt"

	"github.com/notargets/HHOKernel/basis"
	"github.com/notargets/HHOKernel/quadrature"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// LocalOperator is the gradient reconstruction of a cell: Reconstruction maps
// the local unknowns to the coefficients of the reconstruction basis without
// its constant mode, Laplacian is the consistent part of the bilinear form
type LocalOperator struct {
	Reconstruction *mat.Dense // (rbs-1) x N
	Laplacian      *mat.Dense // N x N
}

// stiffness integrates grad(phi_i) . grad(phi_j) of the reconstruction basis
func stiffness(s *LocalSpace) (*mat.SymDense, error) {
	rbs := s.Recon.Size()
	deg := 2 * (s.Degree.Reconstruction() - 1)
	pts, err := s.cellPoints(deg)
	if err != nil {
		return nil, err
	}
	K := mat.NewSymDense(rbs, nil)
	for _, q := range pts {
		g := s.Recon.EvalGradients(q.X)
		var gg mat.Dense
		gg.Mul(g, g.T())
		for i := 0; i < rbs; i++ {
			for j := i; j < rbs; j++ {
				K.SetSym(i, j, K.At(i, j)+q.W*gg.At(i, j))
			}
		}
	}
	return K, nil
}

// Reconstruction builds the local operator. The reconstruction p_T solves
//
//	(grad p_T v, grad w)_T = (grad v_T, grad w)_T + sum_F (v_F - v_T, grad w . n)_F
//
// for every w of the reconstruction basis but the constant.
func Reconstruction(s *LocalSpace) (*LocalOperator, error) {
	var (
		rbs = s.Recon.Size()
		cbs = s.CellSize()
		N   = s.NumDofs()
	)
	K, err := stiffness(s)
	if err != nil {
		return nil, err
	}
	lhs := mat.NewSymDense(rbs-1, nil)
	for i := 1; i < rbs; i++ {
		for j := i; j < rbs; j++ {
			lhs.SetSym(i-1, j-1, K.At(i, j))
		}
	}
	rhs := mat.NewDense(rbs-1, N, nil)
	for i := 1; i < rbs; i++ {
		for j := 0; j < cbs; j++ {
			rhs.Set(i-1, j, K.At(i, j))
		}
	}
	deg := s.Degree.Reconstruction() - 1 + max(s.Degree.Face, s.Degree.Cell)
	for fi := range s.Faces {
		pts, err := s.facePoints(fi, deg)
		if err != nil {
			return nil, err
		}
		off := s.FaceOffset(fi)
		for _, q := range pts {
			dn := normalDerivatives(s.Recon.EvalGradients(q.X), s.Normals[fi])[1:]
			addOuter(rhs, -q.W, dn, s.Cell.EvalFunctions(q.X), 0, 0)
			addOuter(rhs, q.W, dn, s.FaceBases[fi].EvalFunctions(q.X), 0, off)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(lhs); !ok {
		return nil, fmt.Errorf("cell %d: reconstruction stiffness not positive definite: %w",
			s.CellID, basis.ErrDegenerateElement)
	}
	R := mat.NewDense(rbs-1, N, nil)
	if err := chol.SolveTo(R, rhs); err != nil {
		return nil, fmt.Errorf("cell %d: reconstruction solve: %w", s.CellID, err)
	}
	A := mat.NewDense(N, N, nil)
	A.Mul(rhs.T(), R)
	symmetrize(A)
	return &LocalOperator{Reconstruction: R, Laplacian: A}, nil
}

// symmetrize removes the round-off asymmetry of a matrix that is symmetric in
// exact arithmetic
func symmetrize(a *mat.Dense) {
	n, _ := a.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := 0.5 * (a.At(i, j) + a.At(j, i))
			a.Set(i, j, v)
			a.Set(j, i, v)
		}
	}
}

// MassMatrix integrates phi_i phi_j of b over pts
func MassMatrix(b basis.Basis, pts []quadrature.Point) *mat.SymDense {
	n := b.Size()
	M := mat.NewSymDense(n, nil)
	for _, q := range pts {
		phi := b.EvalFunctions(q.X)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				M.SetSym(i, j, M.At(i, j)+q.W*phi[i]*phi[j])
			}
		}
	}
	return M
}

// traceMatrix integrates face basis times reconstruction basis on face fi,
// fbs x rbs
func traceMatrix(s *LocalSpace, fi int) (*mat.Dense, error) {
	pts, err := s.facePoints(fi, s.Degree.Face+s.Degree.Reconstruction())
	if err != nil {
		return nil, err
	}
	T := mat.NewDense(s.FaceSize(), s.Recon.Size(), nil)
	for _, q := range pts {
		addOuter(T, q.W, s.FaceBases[fi].EvalFunctions(q.X), s.Recon.EvalFunctions(q.X), 0, 0)
	}
	return T, nil
}

func (s *LocalSpace) faceMass(fi int) (*mat.SymDense, error) {
	pts, err := s.facePoints(fi, 2*s.Degree.Face)
	if err != nil {
		return nil, err
	}
	return MassMatrix(s.FaceBases[fi], pts), nil
}

// Stabilization builds sum_F h_F^-1 (BR_F)^T M_F (BR_F) with
//
//	BR_F = pi_F (p_T v - v_F) + pi_F (v_T - pi_T p_T v)
//
// which does not depend on the constant left free by the reconstruction.
func Stabilization(s *LocalSpace, op *LocalOperator) (*mat.Dense, error) {
	var (
		rbs = s.Recon.Size()
		cbs = s.CellSize()
		fbs = s.FaceSize()
		N   = s.NumDofs()
		R   = op.Reconstruction
	)
	pts, err := s.cellPoints(s.Degree.Cell + s.Degree.Reconstruction())
	if err != nil {
		return nil, err
	}
	// cell mass restricted to cell rows, against the full reconstruction basis
	M := mat.NewDense(cbs, rbs, nil)
	for _, q := range pts {
		phi := s.Recon.EvalFunctions(q.X)
		addOuter(M, q.W, phi[:cbs], phi, 0, 0)
	}
	M1 := mat.NewSymDense(cbs, nil)
	for i := 0; i < cbs; i++ {
		for j := i; j < cbs; j++ {
			M1.SetSym(i, j, M.At(i, j))
		}
	}
	var cholT mat.Cholesky
	if ok := cholT.Factorize(M1); !ok {
		return nil, fmt.Errorf("cell %d: cell mass matrix not positive definite: %w",
			s.CellID, basis.ErrDegenerateElement)
	}
	var M2R mat.Dense
	M2R.Mul(M.Slice(0, cbs, 1, rbs), R)
	// proj1 = v_T - pi_T p_T v
	proj1 := mat.NewDense(cbs, N, nil)
	if err := cholT.SolveTo(proj1, &M2R); err != nil {
		return nil, fmt.Errorf("cell %d: cell projection: %w", s.CellID, err)
	}
	proj1.Scale(-1, proj1)
	for i := 0; i < cbs; i++ {
		proj1.Set(i, i, proj1.At(i, i)+1)
	}

	S := mat.NewDense(N, N, nil)
	for fi := range s.Faces {
		Mf, err := s.faceMass(fi)
		if err != nil {
			return nil, err
		}
		var cholF mat.Cholesky
		if ok := cholF.Factorize(Mf); !ok {
			return nil, fmt.Errorf("cell %d face %d: face mass matrix not positive definite: %w",
				s.CellID, s.Faces[fi], basis.ErrDegenerateElement)
		}
		T, err := traceMatrix(s, fi)
		if err != nil {
			return nil, err
		}
		// proj2 = pi_F (p_T v) - v_F
		var tr mat.Dense
		tr.Mul(T.Slice(0, fbs, 1, rbs), R)
		proj2 := mat.NewDense(fbs, N, nil)
		if err := cholF.SolveTo(proj2, &tr); err != nil {
			return nil, err
		}
		off := s.FaceOffset(fi)
		for i := 0; i < fbs; i++ {
			proj2.Set(i, off+i, proj2.At(i, off+i)-1)
		}
		// proj3 = pi_F (v_T - pi_T p_T v)
		var tc mat.Dense
		tc.Mul(T.Slice(0, fbs, 0, cbs), proj1)
		proj3 := mat.NewDense(fbs, N, nil)
		if err := cholF.SolveTo(proj3, &tc); err != nil {
			return nil, err
		}
		proj2.Add(proj2, proj3)

		var MBR, contrib mat.Dense
		MBR.Mul(Mf, proj2)
		contrib.Mul(proj2.T(), &MBR)
		contrib.Scale(1/s.FaceDiameters[fi], &contrib)
		S.Add(S, &contrib)
	}
	symmetrize(S)
	return S, nil
}

// SourceTerm integrates f against the cell basis; face rows stay zero
func SourceTerm(s *LocalSpace, f func(r3.Vec) float64) (*mat.VecDense, error) {
	rhs := mat.NewVecDense(s.NumDofs(), nil)
	if f == nil {
		return rhs, nil
	}
	pts, err := s.cellPoints(2 * s.Degree.Reconstruction())
	if err != nil {
		return nil, err
	}
	for _, q := range pts {
		fq := f(q.X)
		for i, phi := range s.Cell.EvalFunctions(q.X) {
			rhs.SetVec(i, rhs.AtVec(i)+q.W*fq*phi)
		}
	}
	return rhs, nil
}

// NitscheTerms are the weak Dirichlet contributions of one boundary face.
// The modified local system is (A - Consistency - Penalty, L - Rhs).
type NitscheTerms struct {
	Consistency *mat.Dense    // C + theta C^T
	Penalty     *mat.Dense    // -(eta/h_F) M_F on the face block
	Rhs         *mat.VecDense // theta R^T (g, grad r . n)_F - (eta/h_F) (g, w)_F
}

// Nitsche builds the weak imposition of u = g on local face fi, with
// C(u, v) = (grad p_T u . n, v_F)_F, penalty eta and symmetry parameter theta
// (1 symmetric, 0 incomplete, -1 skew-symmetric)
func Nitsche(s *LocalSpace, op *LocalOperator, fi int, g func(r3.Vec) float64, eta, theta float64) (*NitscheTerms, error) {
	var (
		rbs = s.Recon.Size()
		fbs = s.FaceSize()
		N   = s.NumDofs()
		off = s.FaceOffset(fi)
		hF  = s.FaceDiameters[fi]
	)
	pts, err := s.facePoints(fi, 2*s.Degree.Reconstruction())
	if err != nil {
		return nil, err
	}
	Gn := mat.NewDense(fbs, rbs-1, nil)
	Mf := mat.NewDense(fbs, fbs, nil)
	gdn := mat.NewVecDense(rbs-1, nil)
	gw := mat.NewVecDense(fbs, nil)
	for _, q := range pts {
		dn := normalDerivatives(s.Recon.EvalGradients(q.X), s.Normals[fi])[1:]
		w := s.FaceBases[fi].EvalFunctions(q.X)
		addOuter(Gn, q.W, w, dn, 0, 0)
		addOuter(Mf, q.W, w, w, 0, 0)
		if g == nil {
			continue
		}
		gq := g(q.X)
		for a, v := range dn {
			gdn.SetVec(a, gdn.AtVec(a)+q.W*gq*v)
		}
		for i, v := range w {
			gw.SetVec(i, gw.AtVec(i)+q.W*gq*v)
		}
	}
	var CF mat.Dense
	CF.Mul(Gn, op.Reconstruction)
	C := mat.NewDense(N, N, nil)
	for i := 0; i < fbs; i++ {
		for j := 0; j < N; j++ {
			v := CF.At(i, j)
			C.Set(off+i, j, C.At(off+i, j)+v)
			C.Set(j, off+i, C.At(j, off+i)+theta*v)
		}
	}
	P := mat.NewDense(N, N, nil)
	for i := 0; i < fbs; i++ {
		for j := 0; j < fbs; j++ {
			P.Set(off+i, off+j, -eta/hF*Mf.At(i, j))
		}
	}
	B := mat.NewVecDense(N, nil)
	B.MulVec(op.Reconstruction.T(), gdn)
	B.ScaleVec(theta, B)
	for i := 0; i < fbs; i++ {
		B.SetVec(off+i, B.AtVec(off+i)-eta/hF*gw.AtVec(i))
	}
	return &NitscheTerms{Consistency: C, Penalty: P, Rhs: B}, nil
}

// DefaultPenalty is the Nitsche penalty used when none is configured
func DefaultPenalty(faceDegree int) float64 {
	k := float64(faceDegree + 1)
	return 20 * k * k
}
