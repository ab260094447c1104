package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

const plazoPrueba = 15 * time.Second

// kernelDePrueba arma un kernel aislado con un directorio de swap propio
func kernelDePrueba(t *testing.T, ajustar func(*KernelConfig)) *Kernel {
	t.Helper()

	cfg := &KernelConfig{
		LogLevel:       "error",
		Algoritmo:      "DEFAULT",
		CPUs:           1,
		Quantum:        2,
		MarcosLibres:   128,
		TamPagina:      4096,
		EntradasTLB:    8,
		DirectorioSwap: t.TempDir(),
		RetardoTick:    1,
	}
	if ajustar != nil {
		ajustar(cfg)
	}
	utils.InicializarLogger(cfg.LogLevel, "kernel-test")

	k, err := NuevoKernel(cfg)
	require.NoError(t, err)
	t.Cleanup(k.Detener)
	return k
}

// correr arranca el kernel con raiz como programa de la shell
func correr(t *testing.T, k *Kernel, raiz func(*Proc)) {
	t.Helper()
	require.NoError(t, k.Arrancar(raiz))
	k.IniciarPlanificacion()
}

// esperarSenal recibe del canal o aborta la prueba al vencer el plazo
func esperarSenal[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(plazoPrueba):
		t.Fatal("la carga de prueba no terminó a tiempo")
	}
	panic("no alcanzado")
}
