package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDrawCopiaElBanner(t *testing.T) {
	k := kernelDePrueba(t, nil)

	type salida struct {
		n     int
		corto int
		texto string
	}
	hecho := make(chan salida, 1)

	correr(t, k, func(sh *Proc) {
		buffer := make([]byte, 2048)
		n := sh.Draw(buffer)
		chico := make([]byte, 8)
		hecho <- salida{n: n, corto: sh.Draw(chico), texto: string(buffer[:len(bannerConsola)])}
	})

	r := esperarSenal(t, hecho)
	assert.Equal(t, len(bannerConsola)+1, r.n, "draw devuelve los bytes copiados con terminador")
	assert.Equal(t, -1, r.corto, "un buffer chico debe fallar")
	assert.Equal(t, bannerConsola, r.texto)
	assert.True(t, strings.Contains(r.texto, "CUERVOS"))
}

func TestHistoryCodigosDeRetorno(t *testing.T) {
	k := kernelDePrueba(t, nil)
	k.RegistrarComando("p")
	k.RegistrarComando("kill 7")

	type codigos struct {
		ok, texto1      int
		vacio, invalido int
		contenido       string
	}
	hecho := make(chan codigos, 1)

	correr(t, k, func(sh *Proc) {
		buffer := make([]byte, 64)
		var r codigos
		r.ok = sh.History(buffer, 0)
		r.contenido = strings.TrimRight(string(buffer), "\x00")
		r.texto1 = sh.History(buffer, 1)
		r.vacio = sh.History(buffer, 5)
		r.invalido = sh.History(buffer, MaxHistorial)
		hecho <- r
	})

	r := esperarSenal(t, hecho)
	assert.Equal(t, 0, r.ok)
	assert.Equal(t, "p", r.contenido)
	assert.Equal(t, 0, r.texto1)
	assert.Equal(t, 1, r.vacio, "slot vacío devuelve 1")
	assert.Equal(t, 2, r.invalido, "id fuera de rango devuelve 2")
}

func TestGetpidDistintosPorProceso(t *testing.T) {
	k := kernelDePrueba(t, nil)

	pids := make(chan int, 3)
	hecho := make(chan int, 1)

	correr(t, k, func(sh *Proc) {
		for i := 0; i < 2; i++ {
			sh.Fork(func(c *Proc) {
				pids <- c.Getpid()
				c.Exit()
			})
		}
		sh.Wait()
		sh.Wait()
		hecho <- sh.Getpid()
	})

	pidSh := esperarSenal(t, hecho)
	a := esperarSenal(t, pids)
	b := esperarSenal(t, pids)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, pidSh)
	assert.NotEqual(t, b, pidSh)
}

func TestReparentarHuerfanosAInit(t *testing.T) {
	k := kernelDePrueba(t, nil)

	pidNieto := make(chan int, 1)
	hecho := make(chan struct{}, 1)

	correr(t, k, func(sh *Proc) {
		sh.Fork(func(hijo *Proc) {
			// El nieto sobrevive a su padre y pasa a manos de init
			pidNieto <- hijo.Fork(func(nieto *Proc) {
				nieto.Sleep(8)
				nieto.Exit()
			})
			hijo.Exit()
		})
		sh.Wait()
		hecho <- struct{}{}
	})

	esperarSenal(t, hecho)
	pid := esperarSenal(t, pidNieto)

	// init debe cosechar al nieto: su slot desaparece del listado
	assert.Eventually(t, func() bool {
		for _, info := range k.Procesos() {
			if info.PID == pid {
				return false
			}
		}
		return true
	}, plazoPrueba, 10*time.Millisecond, "init debe cosechar a los huérfanos")
}

func TestVolcarProcesosListaDormidos(t *testing.T) {
	k := kernelDePrueba(t, nil)

	pidHijo := make(chan int, 1)
	hecho := make(chan struct{}, 1)

	correr(t, k, func(sh *Proc) {
		pidHijo <- sh.Fork(func(c *Proc) {
			c.Sleep(200)
			c.Exit()
		})
		sh.Wait()
		hecho <- struct{}{}
	})

	pid := esperarSenal(t, pidHijo)

	assert.Eventually(t, func() bool {
		volcado := k.VolcarProcesos()
		return strings.Contains(volcado, "sleep") && strings.Contains(volcado, "init")
	}, plazoPrueba, 10*time.Millisecond)

	k.MatarExterno(pid)
	esperarSenal(t, hecho)
}
