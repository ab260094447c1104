package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForkWaitDevuelvePid(t *testing.T) {
	k := kernelDePrueba(t, nil)

	type eco struct {
		pid1, reap1 int
		pid2, reap2 int
	}
	hecho := make(chan eco, 1)

	correr(t, k, func(sh *Proc) {
		pid1 := sh.Fork(func(c *Proc) { c.Exit() })
		reap1 := sh.Wait()
		pid2 := sh.Fork(func(c *Proc) { c.Exit() })
		reap2 := sh.Wait()
		hecho <- eco{pid1, reap1, pid2, reap2}
	})

	r := esperarSenal(t, hecho)
	assert.Greater(t, r.pid1, 0)
	assert.Equal(t, r.pid1, r.reap1, "wait debe devolver el pid del hijo")
	assert.Equal(t, r.pid2, r.reap2)
	assert.NotEqual(t, r.pid1, r.pid2, "dos forks deben dar pids distintos")

	// Tras cosechar a la shell quedan init y los dos demonios de swap
	require.Eventually(t, func() bool {
		return len(k.Procesos()) == 3
	}, plazoPrueba, 10*time.Millisecond, "los slots cosechados deben volver a UNUSED")
}

func TestWait2Estadisticas(t *testing.T) {
	k := kernelDePrueba(t, nil)

	const computo = 30
	const descanso = 10

	type stats struct {
		pid, reap                    int
		retime, rutime, stime, ctime int
		ctimeEsperado                int
	}
	hecho := make(chan stats, 1)

	correr(t, k, func(sh *Proc) {
		var r stats
		r.ctimeEsperado = sh.Uptime()
		r.pid = sh.Fork(func(c *Proc) {
			c.Computar(computo)
			c.Sleep(descanso)
			c.Exit()
		})
		r.reap = sh.Wait2(&r.retime, &r.rutime, &r.stime, &r.ctime)
		hecho <- r
	})

	r := esperarSenal(t, hecho)
	assert.Equal(t, r.pid, r.reap)
	assert.InDelta(t, computo, r.rutime, 2, "rutime debe acercarse al cómputo")
	assert.InDelta(t, descanso, r.stime, 2, "stime debe acercarse al sueño")
	assert.GreaterOrEqual(t, r.retime, 0)
	assert.LessOrEqual(t, r.retime, 3)
	assert.InDelta(t, r.ctimeEsperado, r.ctime, 1, "ctime es el tick del fork")
}

func TestSumaDeTiemposCubreLaVida(t *testing.T) {
	k := kernelDePrueba(t, nil)

	type vida struct {
		retime, rutime, stime, ctime int
		final                        int
	}
	hecho := make(chan vida, 1)

	correr(t, k, func(sh *Proc) {
		var v vida
		sh.Fork(func(c *Proc) {
			c.Computar(12)
			c.Sleep(6)
			c.Exit()
		})
		v.final = sh.Wait2(&v.retime, &v.rutime, &v.stime, &v.ctime)
		hecho <- v
	})

	v := esperarSenal(t, hecho)
	total := v.retime + v.rutime + v.stime
	assert.InDelta(t, 18, total, 3, "retime+rutime+stime debe cubrir la vida del proceso")
}

func TestFCFSCorreEnOrdenDeLlegada(t *testing.T) {
	k := kernelDePrueba(t, func(cfg *KernelConfig) {
		cfg.Algoritmo = "FCFS"
	})

	type tramo struct {
		etiqueta      string
		inicio, final int
	}
	orden := make(chan tramo, 3)
	hecho := make(chan struct{}, 1)

	correr(t, k, func(sh *Proc) {
		for _, etiqueta := range []string{"A", "B", "C"} {
			etiqueta := etiqueta
			sh.Fork(func(c *Proc) {
				inicio := c.Uptime()
				c.Computar(15)
				orden <- tramo{etiqueta, inicio, c.Uptime()}
				c.Exit()
			})
		}
		sh.Wait()
		sh.Wait()
		sh.Wait()
		hecho <- struct{}{}
	})

	esperarSenal(t, hecho)
	primero := esperarSenal(t, orden)
	segundo := esperarSenal(t, orden)
	tercero := esperarSenal(t, orden)

	assert.Equal(t, "A", primero.etiqueta)
	assert.Equal(t, "B", segundo.etiqueta)
	assert.Equal(t, "C", tercero.etiqueta)

	// Sin desalojo no hay solapamiento de ráfagas
	assert.LessOrEqual(t, primero.final, segundo.inicio)
	assert.LessOrEqual(t, segundo.final, tercero.inicio)
}

func TestSMLPrioridadAltaAcapara(t *testing.T) {
	k := kernelDePrueba(t, func(cfg *KernelConfig) {
		cfg.Algoritmo = "SML"
	})

	marcas := make(chan int, 64)
	ventana := make(chan [2]int, 1)
	hecho := make(chan struct{}, 1)

	correr(t, k, func(sh *Proc) {
		sh.Fork(func(lo *Proc) {
			lo.SetPrio(1)
			for i := 0; i < 20; i++ {
				lo.Computar(2)
				marcas <- lo.Uptime()
			}
			lo.Exit()
		})

		// Dejar que el de baja prioridad arranque solo
		sh.Sleep(3)

		sh.Fork(func(hi *Proc) {
			hi.SetPrio(3)
			inicio := hi.Uptime()
			hi.Computar(30)
			ventana <- [2]int{inicio, hi.Uptime()}
			hi.Exit()
		})

		sh.Wait()
		sh.Wait()
		hecho <- struct{}{}
	})

	esperarSenal(t, hecho)
	v := esperarSenal(t, ventana)
	close(marcas)

	dentro := 0
	for marca := range marcas {
		if marca > v[0]+1 && marca < v[1]-1 {
			dentro++
		}
	}
	assert.LessOrEqual(t, dentro, 1,
		"el proceso de prioridad 1 no debe avanzar mientras computa el de prioridad 3")
}

func TestDMLEnvejecePorQuantum(t *testing.T) {
	k := kernelDePrueba(t, func(cfg *KernelConfig) {
		cfg.Algoritmo = "DML"
		cfg.Quantum = 2
	})

	prioFinal := make(chan int, 1)
	hecho := make(chan struct{}, 1)

	correr(t, k, func(sh *Proc) {
		sh.Fork(func(c *Proc) {
			c.SetPrio(3)
			c.Computar(5) // dos quantums completos
			prioFinal <- c.Prioridad()
			c.Exit()
		})
		sh.Wait()
		hecho <- struct{}{}
	})

	esperarSenal(t, hecho)
	assert.Equal(t, 1, esperarSenal(t, prioFinal),
		"dos quantums completos deben bajar la prioridad de 3 a 1")
}

func TestDMLPromueveAlDespertar(t *testing.T) {
	k := kernelDePrueba(t, func(cfg *KernelConfig) {
		cfg.Algoritmo = "DML"
	})

	prioDespierto := make(chan int, 1)
	hecho := make(chan struct{}, 1)

	correr(t, k, func(sh *Proc) {
		sh.Fork(func(c *Proc) {
			c.SetPrio(1)
			c.Sleep(3)
			prioDespierto <- c.Prioridad()
			c.Exit()
		})
		sh.Wait()
		hecho <- struct{}{}
	})

	esperarSenal(t, hecho)
	assert.Equal(t, 3, esperarSenal(t, prioDespierto),
		"despertar de E/S repone la prioridad máxima")
}

func TestKillDespiertaYTermina(t *testing.T) {
	k := kernelDePrueba(t, nil)

	type resultado struct {
		pid, reap, kill int
	}
	hecho := make(chan resultado, 1)

	correr(t, k, func(sh *Proc) {
		var r resultado
		r.pid = sh.Fork(func(c *Proc) {
			c.Sleep(1_000_000)
			c.Exit()
		})
		// Darle tiempo a dormirse de verdad
		sh.Sleep(3)
		r.kill = sh.Kill(r.pid)
		r.reap = sh.Wait()
		hecho <- r
	})

	r := esperarSenal(t, hecho)
	assert.Equal(t, 0, r.kill)
	assert.Equal(t, r.pid, r.reap, "el hijo marcado debe terminar y ser cosechado")
}

func TestKillPidInexistente(t *testing.T) {
	k := kernelDePrueba(t, nil)

	hecho := make(chan int, 1)
	correr(t, k, func(sh *Proc) {
		hecho <- sh.Kill(9999)
	})
	assert.Equal(t, -1, esperarSenal(t, hecho))
}

func TestSetPrioFueraDeRango(t *testing.T) {
	k := kernelDePrueba(t, func(cfg *KernelConfig) {
		cfg.Algoritmo = "SML"
	})

	hecho := make(chan [3]int, 1)
	correr(t, k, func(sh *Proc) {
		hecho <- [3]int{sh.SetPrio(0), sh.SetPrio(4), sh.SetPrio(2)}
	})

	r := esperarSenal(t, hecho)
	assert.NotZero(t, r[0])
	assert.NotZero(t, r[1])
	assert.Zero(t, r[2])
}

func TestUptimeAvanza(t *testing.T) {
	k := kernelDePrueba(t, nil)

	hecho := make(chan [2]int, 1)
	correr(t, k, func(sh *Proc) {
		antes := sh.Uptime()
		sh.Sleep(5)
		hecho <- [2]int{antes, sh.Uptime()}
	})

	r := esperarSenal(t, hecho)
	assert.GreaterOrEqual(t, r[1]-r[0], 5)
}

func TestSleepNegativoFalla(t *testing.T) {
	k := kernelDePrueba(t, nil)

	hecho := make(chan int, 1)
	correr(t, k, func(sh *Proc) {
		hecho <- sh.Sleep(-1)
	})
	assert.Equal(t, -1, esperarSenal(t, hecho))
}

func TestSbrkDevuelveDireccionVieja(t *testing.T) {
	k := kernelDePrueba(t, nil)

	pg := 4096
	hecho := make(chan [2]int, 1)
	correr(t, k, func(sh *Proc) {
		primera := sh.Sbrk(2 * pg)
		segunda := sh.Sbrk(pg)
		hecho <- [2]int{primera, segunda}
	})

	r := esperarSenal(t, hecho)
	assert.Equal(t, 0, r[0])
	assert.Equal(t, 2*pg, r[1])
}
